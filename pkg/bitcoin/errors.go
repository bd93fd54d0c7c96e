package bitcoin

import "errors"

var (
	ErrTruncated          = errors.New("bitcoin: unexpected end of data")
	ErrNonCanonicalVarint = errors.New("bitcoin: non-canonical varint")
	ErrTrailingBytes      = errors.New("bitcoin: trailing bytes after transaction")
	ErrSegwitFlag         = errors.New("bitcoin: unsupported segwit flag")
	ErrInvalidOutpoint    = errors.New("bitcoin: invalid outpoint")
	ErrUnknownScriptType  = errors.New("bitcoin: unknown script type")
	ErrInvalidPubKey      = errors.New("bitcoin: invalid public key")
	ErrUnknownNetwork     = errors.New("bitcoin: unknown network")
)
