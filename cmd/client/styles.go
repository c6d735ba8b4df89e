package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

var (
	folderColor   = color.New(color.FgHiBlue, color.Bold).SprintFunc()
	pushColor     = color.New(color.FgHiGreen).SprintFunc()
	pullColor     = color.New(color.FgHiCyan).SprintFunc()
	conflictColor = color.New(color.FgHiYellow).SprintFunc()
)
