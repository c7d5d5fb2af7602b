package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	PrimaryColor   = lipgloss.Color("39")  // Blue
	SecondaryColor = lipgloss.Color("213") // Pink
	ErrorColor     = lipgloss.Color("196") // Red
	MutedColor     = lipgloss.Color("243") // Gray

	BaseStyle = lipgloss.NewStyle()

	HeaderStyle = BaseStyle.
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	StatusStyle = BaseStyle.
			Foreground(MutedColor).
			Padding(0, 1)

	RoomTagStyle = BaseStyle.
			Foreground(PrimaryColor)

	SenderStyle = BaseStyle.
			Foreground(SecondaryColor).
			Bold(true)

	PrivateStyle = BaseStyle.
			Foreground(SecondaryColor).
			Italic(true)

	SystemStyle = BaseStyle.
			Foreground(MutedColor)

	ErrorStyle = BaseStyle.
			Foreground(ErrorColor)
)
