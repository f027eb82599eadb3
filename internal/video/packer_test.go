package video

import "testing"

func TestPackDualView_Shapes(t *testing.T) {
	const w, h = 4, 4
	frame := NewYUV444Frame(w, h)
	for i := range frame.Y {
		frame.Y[i] = byte(10 * i)
	}

	main, aux, err := PackDualView(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if main.Width != w || main.Height != h {
		t.Fatalf("main dims = %dx%d, want %dx%d", main.Width, main.Height, w, h)
	}
	if len(main.Y) != w*h {
		t.Fatalf("main.Y len = %d, want %d", len(main.Y), w*h)
	}
	if len(main.U) != (w/2)*(h/2) || len(main.V) != (w/2)*(h/2) {
		t.Fatalf("main chroma len = %d/%d, want %d", len(main.U), len(main.V), (w/2)*(h/2))
	}

	if len(aux.Y) != w*h {
		t.Fatalf("aux.Y len = %d, want %d", len(aux.Y), w*h)
	}
	if len(aux.U) != (w/2)*(h/2) || len(aux.V) != (w/2)*(h/2) {
		t.Fatalf("aux chroma len = %d/%d, want %d", len(aux.U), len(aux.V), (w/2)*(h/2))
	}
}

func TestPackDualView_MainMatchesSubsampleChroma420(t *testing.T) {
	const w, h = 6, 4
	frame := NewYUV444Frame(w, h)
	for i := range frame.U {
		frame.U[i] = byte(3*i + 1)
		frame.V[i] = byte(5*i + 2)
	}

	main, _, err := PackDualView(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantU, err := SubsampleChroma420(frame.U, w, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantV, err := SubsampleChroma420(frame.V, w, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range wantU {
		if main.U[i] != wantU[i] {
			t.Errorf("main.U[%d] = %d, want %d", i, main.U[i], wantU[i])
		}
		if main.V[i] != wantV[i] {
			t.Errorf("main.V[%d] = %d, want %d", i, main.V[i], wantV[i])
		}
	}
}

func TestPackDualView_AuxYInterleavesFullResChroma(t *testing.T) {
	const w, h = 2, 2
	frame := NewYUV444Frame(w, h)
	frame.U[0], frame.V[0] = 11, 22
	frame.U[1], frame.V[1] = 33, 44
	frame.U[2], frame.V[2] = 55, 66
	frame.U[3], frame.V[3] = 77, 88

	_, aux, err := PackDualView(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{11, 44, 55, 88} // even index -> U, odd index -> V
	for i, v := range want {
		if aux.Y[i] != v {
			t.Errorf("aux.Y[%d] = %d, want %d", i, aux.Y[i], v)
		}
	}
}

func TestPackDualView_RejectsOddDimensions(t *testing.T) {
	frame := NewYUV444Frame(3, 4)
	if _, _, err := PackDualView(frame); err == nil {
		t.Fatalf("expected error for odd width")
	}
}
