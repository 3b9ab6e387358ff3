// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/ffutop/hs321/drive"
	"github.com/ffutop/hs321/internal/drivesim/model"
)

const (
	registerCount = model.MaxAddress + 1
	totalSize     = registerCount * 2
)

// parameterEnd is one past the last register of the parameter groups
// (F0.00 through FP.255). A drive keeps these across power cycles. Control,
// status, monitoring and fault registers are volatile.
var parameterEnd = int(drive.BuildAddress(drive.GroupFP, 0xFF)) + 1

// retentive reports whether [address, address+quantity) touches a
// parameter register.
func retentive(address, quantity uint16) bool {
	return quantity > 0 && int(address) < parameterEnd
}

// mapBytesToModel constructs a DataModel backed by the provided data slice.
// Warning: This function uses unsafe pointers to cast the byte slice to a
// uint16 slice. The resulting image relies on the host's endianness and is
// not portable across architectures with different byte order.
func mapBytesToModel(data []byte) *model.DataModel {
	return &model.DataModel{
		Registers: unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), registerCount),
	}
}

var errNotLoaded = errors.New("persistence: storage not loaded")

// ensureImageSize grows or truncates f to exactly one register image.
func ensureImageSize(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == int64(totalSize) {
		return nil
	}
	if err := f.Truncate(int64(totalSize)); err != nil {
		return fmt.Errorf("failed to resize register image: %w", err)
	}
	return nil
}
