// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Hardware is the "hardware_info" blob handed to the tiling-parse function as compile info.
type Hardware struct {
	BTSize              int64  `yaml:"bt_size"`
	Load3DConstraints   string `yaml:"load3d_constraints"`
	FixPipeL0C2Out      bool   `yaml:"intrinsic_fix_pipe_l0c2out"`
	DataMoveL12UB       bool   `yaml:"intrinsic_data_move_l12ub"`
	DataMoveL0C2UB      bool   `yaml:"intrinsic_data_move_l0c2ub"`
	DataMoveOut2L1ND2NZ bool   `yaml:"intrinsic_data_move_out2l1_nd2nz"`
	UBSize              int64  `yaml:"ub_size"`
	L2Size              int64  `yaml:"l2_size"`
	L1Size              int64  `yaml:"l1_size"`
	L0ASize             int64  `yaml:"l0a_size"`
	L0BSize             int64  `yaml:"l0b_size"`
	L0CSize             int64  `yaml:"l0c_size"`
	CoreNum             int64  `yaml:"core_num"`
}

var (
	// HardwareDefault is the 20-core profile used by most operators.
	HardwareDefault = Hardware{
		BTSize:              1024,
		Load3DConstraints:   "0",
		FixPipeL0C2Out:      true,
		DataMoveOut2L1ND2NZ: true,
		UBSize:              196608,
		L2Size:              33554432,
		L1Size:              524288,
		L0ASize:             65536,
		L0BSize:             65536,
		L0CSize:             131072,
		CoreNum:             20,
	}

	// HardwareLarge is the 32-core profile with the larger UB/L2/L0C buffers.
	HardwareLarge = Hardware{
		BTSize:              1024,
		Load3DConstraints:   "0",
		FixPipeL0C2Out:      true,
		DataMoveOut2L1ND2NZ: true,
		UBSize:              262144,
		L2Size:              134217728,
		L1Size:              524288,
		L0ASize:             65536,
		L0BSize:             65536,
		L0CSize:             262144,
		CoreNum:             32,
	}
)

// Overridden returns a copy of h with the fields present in overrides replaced.
// Keys are the yaml names of the fields (e.g. "core_num"); unknown keys are an error.
func (h Hardware) Overridden(overrides map[string]any) (Hardware, error) {
	if len(overrides) == 0 {
		return h, nil
	}
	blob, err := yaml.Marshal(overrides)
	if err != nil {
		return h, errors.Wrap(err, "failed to encode hardware overrides")
	}
	updated := h
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(&updated); err != nil {
		return h, errors.Wrap(err, "invalid hardware overrides")
	}
	return updated, nil
}
