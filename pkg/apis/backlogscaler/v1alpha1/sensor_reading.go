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

package v1alpha1

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	FieldSensorID    = "sensor_id"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldPressure    = "pressure"
	FieldTimestamp   = "timestamp"
)

// RequiredFields are the fields every submitted reading must carry, in the order they are checked.
var RequiredFields = []string{FieldSensorID, FieldTemperature, FieldHumidity, FieldTimestamp}

// SensorReading is one unit of work accepted by the processor.
// It is never mutated after it has been created by ParseSensorReading.
type SensorReading struct {
	// ID is assigned on ingestion.
	ID          string   `json:"id"`
	SensorID    string   `json:"sensor_id"`
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	Pressure    *float64 `json:"pressure,omitempty"`
	// Timestamp is the reading time reported by the sensor, in unix seconds.
	Timestamp  float64   `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// Payload returns the reading as a sensor submits it, without the fields stamped on ingestion.
func (r *SensorReading) Payload() map[string]any {
	m := map[string]any{
		FieldSensorID:    r.SensorID,
		FieldTemperature: r.Temperature,
		FieldHumidity:    r.Humidity,
		FieldTimestamp:   r.Timestamp,
	}
	if r.Pressure != nil {
		m[FieldPressure] = *r.Pressure
	}
	return m
}

// ValidationError describes why a submitted reading was rejected.
type ValidationError struct {
	Reason string
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ParseSensorReading validates a decoded JSON object and builds a SensorReading from it.
// The returned reading has no ID, the caller stamps it on ingestion.
func ParseSensorReading(raw map[string]any) (*SensorReading, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: "No data provided"}
	}
	for _, f := range RequiredFields {
		if _, ok := raw[f]; !ok {
			return nil, &ValidationError{Reason: "Missing field", Field: f}
		}
	}
	sensorID, ok := raw[FieldSensorID].(string)
	if !ok || sensorID == "" {
		return nil, &ValidationError{Reason: "Invalid field", Field: FieldSensorID}
	}
	r := &SensorReading{SensorID: sensorID}
	var err error
	if r.Temperature, err = measurementField(raw, FieldTemperature); err != nil {
		return nil, err
	}
	if r.Humidity, err = measurementField(raw, FieldHumidity); err != nil {
		return nil, err
	}
	if r.Timestamp, err = numberField(raw, FieldTimestamp); err != nil {
		return nil, err
	}
	if _, ok := raw[FieldPressure]; ok {
		p, err := measurementField(raw, FieldPressure)
		if err != nil {
			return nil, err
		}
		r.Pressure = &p
	}
	return r, nil
}

// measurementField is a number field whose absolute value must not exceed MaxAbsMeasurement.
func measurementField(raw map[string]any, field string) (float64, error) {
	f, err := numberField(raw, field)
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > MaxAbsMeasurement {
		return 0, &ValidationError{Reason: "Invalid field", Field: field}
	}
	return f, nil
}

// numberField returns a finite number field.
func numberField(raw map[string]any, field string) (float64, error) {
	f, err := anyToFloat(raw[field], field)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Reason: "Invalid field", Field: field}
	}
	return f, nil
}

func anyToFloat(value any, field string) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &ValidationError{Reason: "Invalid field", Field: field}
		}
		return f, nil
	default:
		return 0, &ValidationError{Reason: "Invalid field", Field: field}
	}
}
