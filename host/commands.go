// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package host adapts the pipeline's stage workers to a host thread: typed
// clients over the layout and render stages, viewport publication, and a
// JSON command envelope for hosts that drive the pipeline remotely.
package host

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Command types accepted by Dispatch.
const (
	CmdResize        = "resize"
	CmdSetCamera     = "setCamera"
	CmdSetSheet      = "setSheet"
	CmdSetCursor     = "setCursor"
	CmdSetSelection  = "setSelection"
	CmdShowHeadings  = "showHeadings"
	CmdEditCell      = "editCell"
	CmdAutoSizeCol   = "autoSizeColumn"
)

// Command is the JSON envelope for host-driven control. Unused fields stay
// zero; Type selects which ones apply.
type Command struct {
	Type string `json:"type"`

	Width  float32 `json:"width,omitempty"`
	Height float32 `json:"height,omitempty"`
	DPR    float32 `json:"dpr,omitempty"`

	X     float32 `json:"x,omitempty"`
	Y     float32 `json:"y,omitempty"`
	Scale float32 `json:"scale,omitempty"`

	SheetID uuid.UUID `json:"sheetId,omitempty"`

	Col int64 `json:"col,omitempty"`
	Row int64 `json:"row,omitempty"`

	EndCol int64 `json:"endCol,omitempty"`
	EndRow int64 `json:"endRow,omitempty"`

	Text string `json:"text,omitempty"`
	Show bool   `json:"show,omitempty"`
}

// DecodeCommand parses one JSON command.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("host: bad command: %w", err)
	}
	if c.Type == "" {
		return Command{}, fmt.Errorf("host: command missing type")
	}
	return c, nil
}

// Dispatch applies a decoded command to the clients. Unknown command
// types are an error so a misbehaving host notices instead of silently
// no-oping.
func Dispatch(c Command, lc *LayoutClient, rc *RenderClient) error {
	switch c.Type {
	case CmdResize:
		lc.Resize(c.Width, c.Height, c.DPR)
	case CmdSetCamera:
		lc.SetCamera(c.X, c.Y, c.Scale)
	case CmdSetSheet:
		lc.SetSheet(c.SheetID)
		if rc != nil {
			rc.SetSheet(c.SheetID)
		}
	case CmdSetCursor:
		lc.SetCursor(c.SheetID, c.Col, c.Row)
	case CmdSetSelection:
		lc.SetSelection(c.SheetID, c.Col, c.Row, c.EndCol, c.EndRow)
	case CmdShowHeadings:
		lc.ShowHeadings(c.Show)
	case CmdEditCell:
		lc.EditCell(c.SheetID, c.Col, c.Row, c.Text)
	case CmdAutoSizeCol:
		lc.AutoSizeColumn(c.SheetID, c.Col)
	default:
		return fmt.Errorf("host: unknown command type %q", c.Type)
	}
	return nil
}
