package fetcher

import (
	"context"
	"encoding/xml"
	"io"
	"slices"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeElements decodes every element whose local name is one of names,
// in document order, until EOF or limit elements (limit <= 0 means no
// limit). Parsing is lenient about HTML entities and the declared charset
// is honored. On a syntax error the elements decoded so
// far are returned with the error.
func DecodeElements[T any](ctx context.Context, r io.Reader, limit int, names ...string) ([]T, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	var out []T
	for limit <= 0 || len(out) < limit {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "xml: decode cancelled")
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, eris.Wrap(err, "xml: read token")
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !slices.Contains(names, start.Name.Local) {
			continue
		}

		var item T
		if err := dec.DecodeElement(&item, &start); err != nil {
			return out, eris.Wrapf(err, "xml: decode <%s>", start.Name.Local)
		}
		out = append(out, item)
	}
	return out, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
