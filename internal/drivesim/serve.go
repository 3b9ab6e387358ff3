// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package drivesim

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	rtupacket "github.com/ffutop/hs321/modbus/rtu"
	"github.com/ffutop/hs321/transport/rtu"
)

// frameGap is the silence after which a partial request is discarded.
const frameGap = 50 * time.Millisecond

// drainer is implemented by ports that can wait for transmission to finish.
type drainer interface {
	Drain() error
}

// HandleFrame answers a raw request frame. It returns nil when the frame
// is corrupt, addressed to another slave or a broadcast.
func (s *Simulator) HandleFrame(slave byte, frame []byte) []byte {
	adu, err := rtupacket.Decode(frame)
	if err != nil {
		slog.Debug("Dropping corrupt request", "frame", hex.EncodeToString(frame), "err", err)
		return nil
	}
	if adu.SlaveID != slave && adu.SlaveID != 0 {
		return nil
	}

	resp, err := s.Process(adu.Pdu)
	if err != nil {
		slog.Error("Simulator failed to process request", "err", err)
		return nil
	}
	if adu.SlaveID == 0 {
		return nil
	}

	out := rtupacket.ApplicationDataUnit{SlaveID: slave, Pdu: resp}
	raw, err := out.Encode()
	if err != nil {
		slog.Error("Failed to encode response", "err", err)
		return nil
	}
	return raw
}

// Serve answers requests arriving on port until ctx is done. Port reads
// must return (0, nil) when idle so cancellation is noticed. pin is held at
// Receive and raised to Transmit only while a response is on the wire.
func Serve(ctx context.Context, port io.ReadWriter, pin rtu.DirectionPin, slave byte, sim *Simulator) error {
	buf := make([]byte, rtupacket.MaxSize)
	if err := pin.Set(rtu.Receive); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Read 1 byte to detect the start of a frame.
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}
		if n == 0 {
			continue
		}

		// Read header (7 bytes covers the byte count of 0x10).
		current, err := readUntil(ctx, port, buf, 1, 7)
		if err != nil {
			return err
		}
		if current < 2 {
			continue
		}

		functionCode := buf[1]
		expectedLen, err := rtupacket.RequestLength(functionCode, buf[:current])
		if err != nil || expectedLen > len(buf) {
			slog.Warn("Invalid RTU frame header", "func", functionCode, "err", err)
			continue
		}

		current, err = readUntil(ctx, port, buf, current, expectedLen)
		if err != nil {
			return err
		}
		if current != expectedLen {
			slog.Debug("Discarding partial request", "received", current, "expected", expectedLen)
			continue
		}

		resp := sim.HandleFrame(slave, buf[:expectedLen])
		if resp == nil {
			continue
		}
		if err := respond(port, pin, resp); err != nil {
			slog.Error("Failed to send response", "err", err)
		}
	}
}

// respond transmits resp with the transceiver switched to Transmit and
// always returns it to Receive.
func respond(port io.Writer, pin rtu.DirectionPin, resp []byte) (err error) {
	if err := pin.Set(rtu.Transmit); err != nil {
		return err
	}
	defer func() {
		if rerr := pin.Set(rtu.Receive); rerr != nil && err == nil {
			err = rerr
		}
	}()
	if _, err := port.Write(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if d, ok := port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("failed to drain response: %w", err)
		}
	}
	return nil
}

// readUntil fills buf[current:need] and gives up after frameGap without
// a byte.
func readUntil(ctx context.Context, port io.Reader, buf []byte, current, need int) (int, error) {
	last := time.Now()
	for current < need {
		if ctx.Err() != nil {
			return current, nil
		}
		n, err := port.Read(buf[current:need])
		if err != nil {
			if ctx.Err() != nil {
				return current, nil
			}
			return current, fmt.Errorf("failed to read request: %w", err)
		}
		if n > 0 {
			current += n
			last = time.Now()
			continue
		}
		if time.Since(last) > frameGap {
			break
		}
	}
	return current, nil
}
