package format

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
)

// ErrUnknownFormat is returned by Lookup for names that are not registered.
var ErrUnknownFormat = errors.New("format: unknown texture format")

// Format describes a texture format that accepts wire pixels of type W.
type Format[W any] interface {
	// TextureFormat returns the GPU texture format.
	TextureFormat() gputypes.TextureFormat

	// TexelSize returns the number of bytes one texel occupies.
	TexelSize() int

	// PutTexel writes w into dst[:TexelSize()].
	PutTexel(dst []byte, w W)

	// String returns the registry name of the format.
	String() string
}

// rgba8 is a 4-byte format whose memory order matches the wire order.
type rgba8 struct {
	name string
	tf   gputypes.TextureFormat
}

func (f rgba8) TextureFormat() gputypes.TextureFormat { return f.tf }
func (f rgba8) TexelSize() int                        { return 4 }
func (f rgba8) String() string                        { return f.name }

func (f rgba8) PutTexel(dst []byte, w [4]uint8) {
	_ = dst[3]
	dst[0], dst[1], dst[2], dst[3] = w[0], w[1], w[2], w[3]
}

// bgra8 is a 4-byte format stored as B, G, R, A.
type bgra8 struct{}

func (bgra8) TextureFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (bgra8) TexelSize() int                        { return 4 }
func (bgra8) String() string                        { return "bgra8unorm" }

func (bgra8) PutTexel(dst []byte, w [4]uint8) {
	_ = dst[3]
	dst[0], dst[1], dst[2], dst[3] = w[2], w[1], w[0], w[3]
}

// r8 is a single-channel 8-bit format, used for masks and luminance.
type r8 struct{}

func (r8) TextureFormat() gputypes.TextureFormat { return gputypes.TextureFormatR8Unorm }
func (r8) TexelSize() int                        { return 1 }
func (r8) String() string                        { return "r8unorm" }
func (r8) PutTexel(dst []byte, w uint8)          { dst[0] = w }

// Supported formats.
var (
	// RGBA8Unorm is the standard RGBA format with 8 bits per channel.
	RGBA8Unorm Format[[4]uint8] = rgba8{name: "rgba8unorm", tf: gputypes.TextureFormatRGBA8Unorm}

	// RGBA8UnormSrgb is RGBA8 with sRGB transfer applied by the sampler.
	// Texel bytes are written unchanged.
	RGBA8UnormSrgb Format[[4]uint8] = rgba8{name: "rgba8unorm-srgb", tf: gputypes.TextureFormatRGBA8UnormSrgb}

	// BGRA8Unorm is BGRA order, often used for surface presentation.
	BGRA8Unorm Format[[4]uint8] = bgra8{}

	// R8Unorm is a single 8-bit channel.
	R8Unorm Format[uint8] = r8{}
)

// registry maps names to the 4-channel formats. R8Unorm accepts a different
// wire type and is not part of it.
var registry = map[string]Format[[4]uint8]{
	RGBA8Unorm.String():     RGBA8Unorm,
	RGBA8UnormSrgb.String(): RGBA8UnormSrgb,
	BGRA8Unorm.String():     BGRA8Unorm,
}

// Lookup returns the 4-channel format registered under name.
// Matching is case-insensitive.
func Lookup(name string) (Format[[4]uint8], error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names returns the sorted names of the registered 4-channel formats.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
