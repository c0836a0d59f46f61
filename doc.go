// Package framing moves 2D frames of pixels between host memory and GPU
// images.
//
// # Overview
//
// A [Frame] is anything with a width, a height and a pixel at every (x, y).
// [Upload] turns a frame into a sampled GPU image, converting each pixel to
// the image's wire type on the way. [CopyToBuffer] records a copy of one
// image layer into a host-visible buffer, and [Buffer] exposes that buffer
// as a frame again through [Buffer.Read] and [Buffer.Write].
//
//	q, err := device.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Close()
//
//	img, fut, err := framing.Upload(q, format.RGBA8Unorm, frame)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := fut.Wait(); err != nil {
//	    log.Fatal(err)
//	}
//
//	raw, _ := gpubuf.New[format.RGBA8](q, frame.Width()*frame.Height(), "readback")
//	buf, _ := framing.NewBuffer(raw, frame.Width(), frame.Height())
//	fut, _ = framing.CopyToBuffer(q, img, 0, buf)
//	_ = fut.Wait()
//
//	r, _ := buf.Read()
//	defer r.Release()
//	fmt.Println(r.Pixel(0, 0))
//
// # Pixel order
//
// Pixels are always produced and stored in row-major order: the pixel at
// (x, y) is element y*width + x.
//
// # Packages
//
//   - format: wire pixel types and texture formats
//   - device: GPU queue, images and completion futures
//   - gpubuf: host-visible buffers with reader/writer locking
//
// # Logging
//
// framing is silent by default. See [SetLogger].
package framing
