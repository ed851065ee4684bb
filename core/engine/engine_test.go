package engine

import (
	"strings"
	"testing"
)

func defaultParams() Params {
	return Params{
		WidthThreshold:   3000,
		ResizeHeight:     1500,
		Quality:          85,
		UnsharpRadius:    1.5,
		UnsharpSigma:     1,
		UnsharpAmount:    0.8,
		UnsharpThreshold: 0.02,
	}
}

func TestBuildConvertSinglePage(t *testing.T) {
	got := BuildConvert("/in/page.jpg", "/out/page-0.jpg", nil, defaultParams())
	want := `convert "/in/page.jpg" -resize x1500 -unsharp 1.5x1+0.8+0.02 -quality 85 "/out/page-0.jpg"` + "\n"
	if got != want {
		t.Errorf("command mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildConvertCropAndGray(t *testing.T) {
	p := defaultParams()
	p.Grayscale = true
	p.UnsharpAmount = 0 // disabled

	got := BuildConvert("/in/w.png", "/out/w-1.jpg", &CropSpec{Width: 2000, Height: 2800, X: 0, Y: 0}, p)
	want := `convert "/in/w.png" -crop 2000x2800+0+0 -resize x1500 -colorspace GRAY -quality 85 "/out/w-1.jpg"` + "\n"
	if got != want {
		t.Errorf("command mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildConvertEscapesPaths(t *testing.T) {
	got := BuildConvert(`/in/od"d\name.jpg`, "/out/x.jpg", nil, defaultParams())
	if !strings.Contains(got, `"/in/od\"d\\name.jpg"`) {
		t.Errorf("path not escaped: %q", got)
	}
}

func TestSplitWidths(t *testing.T) {
	cases := []struct{ w, left, right int }{
		{4000, 2000, 2000},
		{4001, 2001, 2000},
		{3, 2, 1},
	}
	for _, c := range cases {
		left, right := SplitWidths(c.w)
		if left != c.left || right != c.right {
			t.Errorf("SplitWidths(%d) = %d,%d want %d,%d", c.w, left, right, c.left, c.right)
		}
	}
}
