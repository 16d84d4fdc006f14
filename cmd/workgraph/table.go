// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle  = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
	evenRowStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
)

// renderTable renders rows of four result words with the word offset of
// each row in the first column.
func renderTable(words []uint32, rows int) string {
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("offset", "+0", "+1", "+2", "+3").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row < 0:
				return headerStyle
			case row%2 == 0:
				return oddRowStyle
			default:
				return evenRowStyle
			}
		})
	for i := 0; i < rows && i*4+3 < len(words); i++ {
		t.Row(
			strconv.Itoa(i*4),
			strconv.FormatUint(uint64(words[i*4]), 10),
			strconv.FormatUint(uint64(words[i*4+1]), 10),
			strconv.FormatUint(uint64(words[i*4+2]), 10),
			strconv.FormatUint(uint64(words[i*4+3]), 10),
		)
	}
	return t.String()
}
