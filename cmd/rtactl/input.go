package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/breaktracker/backend/internal/service"
)

func readShiftInputs(path string) ([]service.ShiftInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs []service.ShiftInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return inputs, nil
}
