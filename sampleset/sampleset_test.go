package sampleset

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/sampling"
)

func TestAddAndCounts(t *testing.T) {
	set, err := NewSet(sampling.R2)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, set.Add(sampling.Sample{1, 2}, true), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{-1, 0}, false), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{3, -2}, true), test.ShouldBeNil)

	test.That(t, set.Len(), test.ShouldEqual, 3)
	test.That(t, set.NumReachable(), test.ShouldEqual, 2)
	test.That(t, set.NumUnreachable(), test.ShouldEqual, 1)

	err = set.Add(sampling.Sample{1, 2, 3}, true)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dimension")
}

func TestBounds(t *testing.T) {
	set, err := NewSet(sampling.R2)
	test.That(t, err, test.ShouldBeNil)

	_, _, err = set.Bounds()
	test.That(t, err, test.ShouldBeError, ErrEmptySet)

	test.That(t, set.Add(sampling.Sample{1, 2}, true), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{-1, 5}, false), test.ShouldBeNil)
	min, max, err := set.Bounds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, min, test.ShouldResemble, sampling.Sample{-1, 2})
	test.That(t, max, test.ShouldResemble, sampling.Sample{1, 5})
}

func TestOrdered(t *testing.T) {
	set, err := NewSet(sampling.R2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{0, 0}, false), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{1, 1}, true), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{2, 2}, false), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{3, 3}, true), test.ShouldBeNil)

	samples, labels := set.Ordered()
	test.That(t, samples, test.ShouldHaveLength, 4)
	test.That(t, labels, test.ShouldResemble, []bool{true, true, false, false})
	test.That(t, samples[0], test.ShouldResemble, sampling.Sample{1, 1})
	test.That(t, samples[1], test.ShouldResemble, sampling.Sample{3, 3})
	test.That(t, samples[2], test.ShouldResemble, sampling.Sample{0, 0})
}

func TestSaveLoad(t *testing.T) {
	set, err := NewSet(sampling.SE2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{0.5, -0.5, 1, 0}, true), test.ShouldBeNil)
	test.That(t, set.Add(sampling.Sample{2, 2, 0, 1}, false), test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "set.json")
	test.That(t, set.Save(path), test.ShouldBeNil)

	loaded, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Kind(), test.ShouldEqual, sampling.SE2)
	test.That(t, loaded.Len(), test.ShouldEqual, 2)
	test.That(t, loaded.NumReachable(), test.ShouldEqual, 1)

	sample, reachable := loaded.At(0)
	test.That(t, reachable, test.ShouldBeTrue)
	test.That(t, sample, test.ShouldResemble, sampling.Sample{0.5, -0.5, 1, 0})
}

func TestLoadRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	bad := []byte(`{"version":1,"space":"R2","samples":[[1,2,3]],"reachabilities":[true]}`)
	test.That(t, os.WriteFile(path, bad, 0o644), test.ShouldBeNil)
	_, err := Load(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dimension")
}
