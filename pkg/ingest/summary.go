/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ingest

import (
	"math"

	"github.com/montanaflynn/stats"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
)

// Summarize computes the mean and the population standard deviation of the
// temperatures of a batch, in batch order, and returns the readings deviating
// more than AnomalyStdDevFactor standard deviations from the mean.
//
// The statistics are computed on the temperatures divided by the largest
// absolute one, so they stay finite for any finite input.
func Summarize(batch []*bsv1.SensorReading) (bsv1.BatchResult, []bsv1.Anomaly) {
	result := bsv1.BatchResult{BatchSize: len(batch)}
	if len(batch) == 0 {
		return result, nil
	}
	var scale float64
	for _, r := range batch {
		scale = math.Max(scale, math.Abs(r.Temperature))
	}
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		scale = 1
	}
	scaled := make(stats.Float64Data, len(batch))
	for i, r := range batch {
		scaled[i] = r.Temperature / scale
	}
	// Both only fail on empty input.
	mean, _ := stats.Mean(scaled)
	std, _ := stats.StandardDeviationPopulation(scaled)
	result.MeanTemperature = finite(mean * scale)
	result.StdTemperature = finite(std * scale)

	var anomalies []bsv1.Anomaly
	for i, v := range scaled {
		if math.Abs(v-mean) > bsv1.AnomalyStdDevFactor*std {
			anomalies = append(anomalies, bsv1.Anomaly{
				SensorID:    batch[i].SensorID,
				Temperature: batch[i].Temperature,
				Deviation:   finite((v - mean) * scale),
				Timestamp:   batch[i].Timestamp,
			})
		}
	}
	result.AnomaliesDetected = len(anomalies)
	return result, anomalies
}

// finite maps NaN to 0 and infinities to the largest float64 of the same sign, the results are JSON encoded.
func finite(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	default:
		return f
	}
}
