package dataset

import (
	"fmt"
	"math/rand"

	"github.com/manifold-labs/promptlab/internal/promptlaberrors"
)

// Split partitions the dataset into (train, test) such that
// len(train) == floor(p*len(d)) when stratify is false, or, when stratify is
// true, the same ratio is applied independently within each ground-truth
// value group (spec §3, §8). p must be in the open interval (0, 1).
//
// rng is used for shuffling order before truncation; pass a seeded
// *rand.Rand, or nil to use a fresh source seeded with 1 (so nil-rng splits
// are also reproducible).
func (d *Dataset) Split(p float64, stratify bool, rng *rand.Rand) (train, test *Dataset, err error) {
	if p <= 0 || p >= 1 {
		return nil, nil, fmt.Errorf("%w: %v", promptlaberrors.ErrInvalidSplit, p)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	if !stratify {
		idx := rng.Perm(len(d.Records))
		nTrain := int(p * float64(len(d.Records)))
		trainRecs, testRecs := partition(d.Records, idx, nTrain)
		return d.withRecords(trainRecs), d.withRecords(testRecs), nil
	}

	groups := groupByOutputValue(d.Records)
	var trainRecs, testRecs []Record
	for _, group := range groups {
		idx := rng.Perm(len(group))
		nTrain := int(p * float64(len(group)))
		tr, te := partition(group, idx, nTrain)
		trainRecs = append(trainRecs, tr...)
		testRecs = append(testRecs, te...)
	}
	return d.withRecords(trainRecs), d.withRecords(testRecs), nil
}

func partition(records []Record, perm []int, nTrain int) (train, test []Record) {
	train = make([]Record, 0, nTrain)
	test = make([]Record, 0, len(records)-nTrain)
	for i, idx := range perm {
		if i < nTrain {
			train = append(train, records[idx])
		} else {
			test = append(test, records[idx])
		}
	}
	return train, test
}

// groupByOutputValue buckets records by their ground-truth value, preserving
// first-seen group order for deterministic iteration.
func groupByOutputValue(records []Record) [][]Record {
	order := make([]string, 0)
	byValue := make(map[string][]Record)
	for _, r := range records {
		_, v := r.Output()
		if _, ok := byValue[v]; !ok {
			order = append(order, v)
		}
		byValue[v] = append(byValue[v], r)
	}
	groups := make([][]Record, 0, len(order))
	for _, v := range order {
		groups = append(groups, byValue[v])
	}
	return groups
}
