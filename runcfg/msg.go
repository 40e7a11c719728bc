// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runcfg

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-daq/tdaq/log"
)

// ParseLevel returns the message level named by v.
func ParseLevel(v string) (log.Level, error) {
	switch strings.ToLower(v) {
	case "debug", "dbg":
		return log.LvlDebug, nil
	case "info", "":
		return log.LvlInfo, nil
	case "warn", "warning":
		return log.LvlWarning, nil
	case "error", "err":
		return log.LvlError, nil
	}
	return log.LvlInfo, fmt.Errorf("runcfg: invalid message level %q", v)
}

// MsgStream returns a message stream named name, writing to w at the
// configured verbosity.
func (cfg *Config) MsgStream(name string, w io.Writer) log.MsgStream {
	lvl, err := ParseLevel(cfg.Verbosity)
	if err != nil {
		lvl = log.LvlInfo
	}
	return log.NewMsgStream(name, lvl, w)
}
