package decode

import (
	"github.com/Darkness4/go-remux/video/annexb"
)

// AnnexBParser splits an H.264 Annex-B stream into access units, each
// returned in Annex-B form.
type AnnexBParser struct {
	splitter annexb.Splitter
}

// NewAnnexBParser returns an AnnexBParser.
func NewAnnexBParser() *AnnexBParser {
	return &AnnexBParser{}
}

// Parse consumes all of data.
func (p *AnnexBParser) Parse(data []byte) ([][]byte, int, error) {
	aus, err := p.splitter.Push(data)
	if err != nil {
		return nil, 0, err
	}
	units, err := marshal(aus)
	return units, len(data), err
}

// Flush returns the last access unit.
func (p *AnnexBParser) Flush() ([][]byte, error) {
	aus, err := p.splitter.Flush()
	if err != nil {
		return nil, err
	}
	return marshal(aus)
}

func marshal(aus []annexb.AccessUnit) ([][]byte, error) {
	units := make([][]byte, 0, len(aus))
	for _, au := range aus {
		b, err := au.AnnexB()
		if err != nil {
			return nil, err
		}
		units = append(units, b)
	}
	return units, nil
}
