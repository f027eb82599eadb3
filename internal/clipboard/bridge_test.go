package clipboard

import "testing"

func TestRDPFormatToMime(t *testing.T) {
	mime, ok := RDPFormatToMime("CF_UNICODETEXT")
	if !ok || mime != "text/plain;charset=utf-8" {
		t.Fatalf("RDPFormatToMime(CF_UNICODETEXT) = %q, %v", mime, ok)
	}

	mime, ok = RDPFormatToMime("CF_DIB")
	if !ok || mime != "image/bmp" {
		t.Fatalf("RDPFormatToMime(CF_DIB) = %q, %v", mime, ok)
	}
}

func TestRDPFormatToMime_HDROPUnmapped(t *testing.T) {
	if _, ok := RDPFormatToMime("CF_HDROP"); ok {
		t.Fatalf("expected CF_HDROP (file transfer) to be unmapped")
	}
}

func TestMimeToRDPFormat(t *testing.T) {
	format, ok := MimeToRDPFormat("image/png")
	if !ok || format != "PNG" {
		t.Fatalf("MimeToRDPFormat(image/png) = %q, %v", format, ok)
	}
}

func TestMimeToRDPFormat_Unmapped(t *testing.T) {
	if _, ok := MimeToRDPFormat("application/octet-stream"); ok {
		t.Fatalf("expected an arbitrary unmapped MIME type to have no RDP format")
	}
}

func TestRdpFormatsToMimeTypes_DropsUnmapped(t *testing.T) {
	got := rdpFormatsToMimeTypes([]string{"CF_UNICODETEXT", "CF_HDROP", "PNG"})
	want := []string{"text/plain;charset=utf-8", "image/png"}
	if !stringSlicesEqual(got, want) {
		t.Fatalf("rdpFormatsToMimeTypes = %v, want %v", got, want)
	}
}

func TestMimeTypesToRDPFormats_DropsUnmapped(t *testing.T) {
	got := mimeTypesToRDPFormats([]string{"text/plain", "application/x-made-up", "image/bmp"})
	want := []string{"CF_TEXT", "CF_DIB"}
	if !stringSlicesEqual(got, want) {
		t.Fatalf("mimeTypesToRDPFormats = %v, want %v", got, want)
	}
}

func TestStringSlicesEqual(t *testing.T) {
	if !stringSlicesEqual([]string{"a", "b"}, []string{"a", "b"}) {
		t.Errorf("expected equal slices to compare equal")
	}
	if stringSlicesEqual([]string{"a"}, []string{"a", "b"}) {
		t.Errorf("expected different-length slices to compare unequal")
	}
	if stringSlicesEqual([]string{"a", "b"}, []string{"b", "a"}) {
		t.Errorf("expected differently-ordered slices to compare unequal")
	}
}

func TestNewBridge_DefaultsDetectorWhenNil(t *testing.T) {
	b := NewBridge(nil, "/org/freedesktop/portal/desktop/session/1", nil, nil, nil)
	if b.detector == nil {
		t.Fatalf("expected NewBridge to default a nil detector")
	}
}
