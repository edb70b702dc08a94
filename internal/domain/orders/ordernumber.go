package orders

import (
	"fmt"

	"github.com/speps/go-hashids/v2"
)

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NumberGenerator turns sequential order ids into short public numbers
// such as "BM-7KQ2XD" that do not reveal the order count.
type NumberGenerator struct {
	h *hashids.HashID
}

func NewNumberGenerator(salt string) (*NumberGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = numberAlphabet

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("order number generator: %w", err)
	}
	return &NumberGenerator{h: h}, nil
}

func (g *NumberGenerator) Generate(orderID int64) (string, error) {
	code, err := g.h.EncodeInt64([]int64{orderID})
	if err != nil {
		return "", fmt.Errorf("encode order number: %w", err)
	}
	return "BM-" + code, nil
}
