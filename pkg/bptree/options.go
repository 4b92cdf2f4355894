package bptree

import "github.com/sirupsen/logrus"

// Options represents the configuration options for the B+ tree index.
type Options struct {
	// number of children per internal node, nodes hold at most Degree-1 keys
	Degree int `json:"degree"`

	// if set True, adding a key that already exists fails with
	// customerrors.ErrDuplicateKey, otherwise the existing value is replaced
	Unique bool `json:"unique"`

	Logger logrus.FieldLogger `json:"-"`
}

type Order int

const (
	Asc Order = iota
	Desc
)
