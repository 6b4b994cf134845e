package events

import (
	"encoding/json"
	"fmt"
)

// SetThinkingStepData sets the Data field with ThinkingStepData in a type-safe way.
func (e *Event) SetThinkingStepData(data ThinkingStepData) error {
	return e.setData("ThinkingStepData", data)
}

// GetThinkingStepData retrieves ThinkingStepData from the Data field.
func (e *Event) GetThinkingStepData() (*ThinkingStepData, error) {
	var data ThinkingStepData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ThinkingStepData: %w", err)
	}
	return &data, nil
}

// SetTurnCompletedData sets the Data field with TurnCompletedData in a type-safe way.
func (e *Event) SetTurnCompletedData(data TurnCompletedData) error {
	return e.setData("TurnCompletedData", data)
}

// GetTurnCompletedData retrieves TurnCompletedData from the Data field.
func (e *Event) GetTurnCompletedData() (*TurnCompletedData, error) {
	var data TurnCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse TurnCompletedData: %w", err)
	}
	return &data, nil
}

// SetApprovalRequestedData sets the Data field with ApprovalRequestedData in a type-safe way.
func (e *Event) SetApprovalRequestedData(data ApprovalRequestedData) error {
	return e.setData("ApprovalRequestedData", data)
}

// GetApprovalRequestedData retrieves ApprovalRequestedData from the Data field.
func (e *Event) GetApprovalRequestedData() (*ApprovalRequestedData, error) {
	var data ApprovalRequestedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ApprovalRequestedData: %w", err)
	}
	return &data, nil
}

// SetApprovalResolvedData sets the Data field with ApprovalResolvedData in a type-safe way.
func (e *Event) SetApprovalResolvedData(data ApprovalResolvedData) error {
	return e.setData("ApprovalResolvedData", data)
}

// GetApprovalResolvedData retrieves ApprovalResolvedData from the Data field.
func (e *Event) GetApprovalResolvedData() (*ApprovalResolvedData, error) {
	var data ApprovalResolvedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ApprovalResolvedData: %w", err)
	}
	return &data, nil
}

// SetSnapshotReloadedData sets the Data field with SnapshotReloadedData in a type-safe way.
func (e *Event) SetSnapshotReloadedData(data SnapshotReloadedData) error {
	return e.setData("SnapshotReloadedData", data)
}

// SetEventCleanupCompletedData sets the Data field with EventCleanupCompletedData in a type-safe way.
func (e *Event) SetEventCleanupCompletedData(data EventCleanupCompletedData) error {
	return e.setData("EventCleanupCompletedData", data)
}

// GetEventCleanupCompletedData retrieves EventCleanupCompletedData from the Data field.
func (e *Event) GetEventCleanupCompletedData() (*EventCleanupCompletedData, error) {
	var data EventCleanupCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EventCleanupCompletedData: %w", err)
	}
	return &data, nil
}

func (e *Event) setData(name string, data interface{}) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", name, err)
	}
	e.Data = dataMap
	return nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
