package box

import "mp4engine/internal/errs"

// versionErr signals a recognised box carrying a version/flags
// combination this codec does not know how to interpret: unrecognised
// versions of recognised boxes fail with UnsupportedVersion rather than
// being treated as unknown.
type versionErr struct {
	tag     Tag
	version uint8
	offset  int
}

func (e *versionErr) Error() string {
	return errs.At(errs.UnsupportedVersion, e.tag.String(), int64(e.offset)).Error()
}

func (e *versionErr) Unwrap() error {
	return errs.At(errs.UnsupportedVersion, e.tag.String(), int64(e.offset))
}
