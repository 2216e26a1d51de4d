package anyddpg

import (
	"errors"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&SharedWeights{}).SerializerType(),
		DeserializeSharedWeights)
}

// SharedWeights is an opaque bundle holding the shared
// parameters of a critic and an actor.
//
// Bundles can be persisted and later transferred into a
// compatible agent.
type SharedWeights struct {
	Critic []anyvec.Vector
	Actor  []anyvec.Vector
}

// DeserializeSharedWeights deserializes a SharedWeights.
func DeserializeSharedWeights(d []byte) (w *SharedWeights, err error) {
	defer essentials.AddCtxTo("deserialize shared weights", &err)
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, err
	}
	if len(slice) < 1 {
		return nil, errors.New("missing critic count")
	}
	numCritic, ok := slice[0].(serializer.Int)
	if !ok || int(numCritic) > len(slice)-1 {
		return nil, errors.New("bad critic count")
	}
	res := &SharedWeights{}
	for i, obj := range slice[1:] {
		saved, ok := obj.(*anyvecsave.S)
		if !ok {
			return nil, errors.New("unexpected bundle entry")
		}
		if i < int(numCritic) {
			res.Critic = append(res.Critic, saved.Vector)
		} else {
			res.Actor = append(res.Actor, saved.Vector)
		}
	}
	return res, nil
}

// SerializerType returns the unique ID used to serialize
// a SharedWeights.
func (s *SharedWeights) SerializerType() string {
	return "github.com/unixpickle/anyddpg.SharedWeights"
}

// Serialize serializes the bundle.
func (s *SharedWeights) Serialize() ([]byte, error) {
	objs := []serializer.Serializer{serializer.Int(len(s.Critic))}
	for _, v := range s.Critic {
		objs = append(objs, &anyvecsave.S{Vector: v})
	}
	for _, v := range s.Actor {
		objs = append(objs, &anyvecsave.S{Vector: v})
	}
	return serializer.SerializeSlice(objs)
}

// SaveSharedWeights persists a bundle to a file.
func SaveSharedWeights(path string, w *SharedWeights) error {
	return serializer.SaveAny(path, w)
}

// LoadSharedWeights loads a bundle saved with
// SaveSharedWeights.
func LoadSharedWeights(path string) (w *SharedWeights, err error) {
	defer essentials.AddCtxTo("load shared weights", &err)
	if err := serializer.LoadAny(path, &w); err != nil {
		return nil, err
	}
	return w, nil
}
