// Package layout computes virtual desktop geometry from a set of monitor
// streams and translates RDP client coordinates into per-monitor local
// coordinates.
package layout

import (
	"errors"
	"fmt"
)

// ErrNoMonitors is returned when Calculate is given an empty monitor set.
var ErrNoMonitors = errors.New("layout: no monitors configured")

// Strategy selects how monitors are arranged in the virtual desktop.
type Strategy int

const (
	// PreservePositions keeps the positions reported by the source
	// (e.g. Portal stream metadata) unchanged.
	PreservePositions Strategy = iota
	// Horizontal arranges monitors left to right in input order.
	Horizontal
	// Vertical arranges monitors top to bottom in input order.
	Vertical
	// Grid arranges monitors in a fixed rows x cols grid, row-major.
	Grid
)

// MonitorSource is a monitor as reported by the capture backend, before
// layout has assigned it a final position.
type MonitorSource struct {
	ID     uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Monitor is a monitor's final position within the virtual desktop.
type Monitor struct {
	ID        uint32
	X         int32
	Y         int32
	Width     uint32
	Height    uint32
	IsPrimary bool
}

// VirtualDesktop is the bounding box of all monitors plus their final
// positions. offset_x/offset_y may be negative when a monitor extends to
// the left of or above the origin.
type VirtualDesktop struct {
	Width    uint32
	Height   uint32
	OffsetX  int32
	OffsetY  int32
	Monitors []Monitor
}

// CoordinateSpace is a monitor-local coordinate transform: its origin sits
// at (OffsetX, OffsetY) within the virtual desktop.
type CoordinateSpace struct {
	Name    string
	Width   uint32
	Height  uint32
	OffsetX int32
	OffsetY int32
}

// Layout pairs a VirtualDesktop with the per-monitor coordinate spaces
// derived from it, and supports RDP<->monitor coordinate transforms.
type Layout struct {
	VirtualDesktop  VirtualDesktop
	CoordinateSpace map[uint32]CoordinateSpace
}

// Calculator computes a VirtualDesktop from monitor sources according to a
// fixed Strategy. Grid requires Rows and Cols > 0.
type Calculator struct {
	Strategy Strategy
	Rows     uint32
	Cols     uint32
}

// NewCalculator returns a Calculator using PreservePositions, matching the
// default used when no explicit layout strategy has been configured.
func NewCalculator() Calculator {
	return Calculator{Strategy: PreservePositions}
}

// Calculate arranges sources per the calculator's strategy and returns the
// resulting VirtualDesktop. The first monitor in input order is always
// primary; overlap between monitor rectangles is not resolved here beyond
// insertion order (later monitors do not displace earlier ones).
func (c Calculator) Calculate(sources []MonitorSource) (VirtualDesktop, error) {
	if len(sources) == 0 {
		return VirtualDesktop{}, ErrNoMonitors
	}

	var monitors []Monitor
	var err error
	switch c.Strategy {
	case PreservePositions:
		monitors = preservePositions(sources)
	case Horizontal:
		monitors = arrangeHorizontal(sources)
	case Vertical:
		monitors = arrangeVertical(sources)
	case Grid:
		monitors, err = arrangeGrid(sources, c.Rows, c.Cols)
	default:
		monitors = preservePositions(sources)
	}
	if err != nil {
		return VirtualDesktop{}, err
	}

	minX, minY, maxX, maxY := bounds(monitors)
	return VirtualDesktop{
		Width:    uint32(maxX - minX),
		Height:   uint32(maxY - minY),
		OffsetX:  minX,
		OffsetY:  minY,
		Monitors: monitors,
	}, nil
}

func preservePositions(sources []MonitorSource) []Monitor {
	out := make([]Monitor, len(sources))
	for i, s := range sources {
		out[i] = Monitor{ID: s.ID, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height, IsPrimary: i == 0}
	}
	return out
}

func arrangeHorizontal(sources []MonitorSource) []Monitor {
	out := make([]Monitor, len(sources))
	var x int32
	for i, s := range sources {
		out[i] = Monitor{ID: s.ID, X: x, Y: 0, Width: s.Width, Height: s.Height, IsPrimary: i == 0}
		x += int32(s.Width)
	}
	return out
}

func arrangeVertical(sources []MonitorSource) []Monitor {
	out := make([]Monitor, len(sources))
	var y int32
	for i, s := range sources {
		out[i] = Monitor{ID: s.ID, X: 0, Y: y, Width: s.Width, Height: s.Height, IsPrimary: i == 0}
		y += int32(s.Height)
	}
	return out
}

func arrangeGrid(sources []MonitorSource, rows, cols uint32) ([]Monitor, error) {
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("layout: grid dimensions must be > 0 (rows=%d cols=%d)", rows, cols)
	}
	out := make([]Monitor, len(sources))
	for i, s := range sources {
		row := uint32(i) / cols
		col := uint32(i) % cols
		x := int32(col * s.Width)
		y := int32(row * s.Height)
		out[i] = Monitor{ID: s.ID, X: x, Y: y, Width: s.Width, Height: s.Height, IsPrimary: i == 0}
	}
	return out, nil
}

func bounds(monitors []Monitor) (minX, minY, maxX, maxY int32) {
	minX, minY = monitors[0].X, monitors[0].Y
	maxX, maxY = monitors[0].X+int32(monitors[0].Width), monitors[0].Y+int32(monitors[0].Height)
	for _, m := range monitors[1:] {
		if m.X < minX {
			minX = m.X
		}
		if m.Y < minY {
			minY = m.Y
		}
		if right := m.X + int32(m.Width); right > maxX {
			maxX = right
		}
		if bottom := m.Y + int32(m.Height); bottom > maxY {
			maxY = bottom
		}
	}
	return
}

// FromVirtualDesktop derives a Layout (with per-monitor coordinate spaces)
// from an already-computed VirtualDesktop.
func FromVirtualDesktop(vd VirtualDesktop) Layout {
	spaces := make(map[uint32]CoordinateSpace, len(vd.Monitors))
	for _, m := range vd.Monitors {
		spaces[m.ID] = CoordinateSpace{
			Name:    fmt.Sprintf("monitor-%d", m.ID),
			Width:   m.Width,
			Height:  m.Height,
			OffsetX: m.X - vd.OffsetX,
			OffsetY: m.Y - vd.OffsetY,
		}
	}
	return Layout{VirtualDesktop: vd, CoordinateSpace: spaces}
}

// TransformRDPToMonitor maps an RDP client coordinate to (monitorID, localX,
// localY). A point on a shared edge between two monitors belongs to the
// monitor whose rectangle starts there (the next, right/lower monitor),
// since monitor rectangles are half-open [x, x+w) x [y, y+h). Returns false
// if the point falls outside every monitor.
func (l Layout) TransformRDPToMonitor(x, y int32) (monitorID uint32, localX, localY int32, ok bool) {
	for _, m := range l.VirtualDesktop.Monitors {
		if x >= m.X && x < m.X+int32(m.Width) && y >= m.Y && y < m.Y+int32(m.Height) {
			return m.ID, x - m.X, y - m.Y, true
		}
	}
	return 0, 0, 0, false
}
