package pixgrid_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pixgrid"
	"github.com/meigma/pixgrid/internal/testutil"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	src := image.NewGray(image.Rect(0, 0, 5, 3))
	src.SetGray(1, 1, color.Gray{Y: 200})

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, src, nil))
	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, src, nil))

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantW      int
		wantH      int
	}{
		{name: "png", data: testutil.ImagePNG(9), wantFormat: "png", wantW: 4, wantH: 2},
		{name: "jpeg", data: jpg.Bytes(), wantFormat: "jpeg", wantW: 5, wantH: 3},
		{name: "gif", data: gf.Bytes(), wantFormat: "gif", wantW: 5, wantH: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img, err := pixgrid.Decode(9, tt.data)
			require.NoError(t, err)
			assert.Equal(t, 9, img.Index)
			assert.Equal(t, tt.wantFormat, img.Format)
			assert.Equal(t, tt.wantW, img.Width)
			assert.Equal(t, tt.wantH, img.Height)
			assert.Equal(t, image.Rect(0, 0, tt.wantW, tt.wantH), img.Bounds())
			assert.Equal(t, int64(len(tt.data)), img.Size)
			assert.Equal(t, digest.FromBytes(tt.data), img.Digest)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{nil, {}, []byte("not an image"), testutil.ImagePNG(3)[:20]} {
		_, err := pixgrid.Decode(1, data)
		require.ErrorIs(t, err, pixgrid.ErrDecode)
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGBA
// pixels, with no image data.
func pngHeader(w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	_ = binary.Write(&ihdr, binary.BigEndian, w)
	_ = binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&b, binary.BigEndian, uint32(ihdr.Len()-4))
	b.Write(ihdr.Bytes())
	_ = binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return b.Bytes()
}

func TestDecode_RejectsOversizedImage(t *testing.T) {
	t.Parallel()

	data := pngHeader(50000, 50000)
	require.Less(t, len(data), 100)

	_, err := pixgrid.Decode(1, data)
	require.ErrorIs(t, err, pixgrid.ErrDecode)
	assert.Contains(t, err.Error(), "50000x50000")

	// A tight bound rejects an otherwise valid image.
	w, h := testutil.ImageSize(9)
	_, err = pixgrid.DecodeLimit(9, testutil.ImagePNG(9), int64(w*h-1))
	require.ErrorIs(t, err, pixgrid.ErrDecode)

	img, err := pixgrid.DecodeLimit(9, testutil.ImagePNG(9), 0)
	require.NoError(t, err)
	assert.Equal(t, w, img.Width)
}
