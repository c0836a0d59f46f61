// Package format describes pixel types and the GPU texture formats they can
// be uploaded as.
//
// A pixel type becomes uploadable by implementing [Wire], which converts it
// into the wire representation W of a texture format. A [Format] accepts
// wire pixels of exactly one type W and knows how to lay them out in texel
// memory. The link between the two is checked by the compiler: a frame of
// RGBA8 pixels can be uploaded as [RGBA8Unorm] or [BGRA8Unorm] because both
// accept [4]uint8, but not as [R8Unorm], which accepts uint8.
//
// Wire pixels of 4-channel formats are always in R, G, B, A order. Formats
// with a different memory order (BGRA8Unorm) swizzle when writing texels.
package format
