package stagedencoder

import (
	"bytes"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// encodeExifPayload builds an EXIF IFD tree holding payload as the
// Exif IFD's UserComment tag and returns both the builder (for
// writing into a JPEG) and the raw encoded byte length, so a caller
// can check the 64 KiB segment ceiling before committing to a write.
func encodeExifPayload(payload string) (*exif.IfdBuilder, []byte, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, nil, err
	}
	ti := exif.NewTagIndex()

	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, nil, err
	}
	if err := exifIb.AddStandardWithName("UserComment", payload); err != nil {
		return nil, nil, err
	}

	ibe := exif.NewIfdByteEncoder()
	raw, err := ibe.EncodeToBytes(rootIb)
	if err != nil {
		return nil, nil, err
	}
	return rootIb, raw, nil
}

// writeExifSegment splices rootIb into jpegBytes as the image's APP1
// EXIF segment, replacing any that already exists.
func writeExifSegment(jpegBytes []byte, rootIb *exif.IfdBuilder) ([]byte, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(jpegBytes)
	if err != nil {
		return nil, err
	}
	sl := intfc.(*jpegstructure.SegmentList)

	if err := sl.SetExif(rootIb); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := sl.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
