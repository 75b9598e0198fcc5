// Package models implements the neural network architectures used for market
// prediction: a feed-forward model (MLP) for flat features and a recurrent
// model (RNN) for [batch, timesteps, features] sequences.
//
// Both are graph-building configurations: they don't hold weights themselves,
// variables are created in the context passed to them. Invalid configurations
// panic while building the graph, like the layer packages they are built on.
package models

import (
	"strings"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// Activation selects the non-linearity applied between fully-connected
// layers.
type Activation int

const (
	// ActivationLeakyRelu is a leaky rectifier with a fixed negative slope of
	// 0.02.
	ActivationLeakyRelu Activation = iota

	// ActivationSilu is x·sigmoid(x), also known as swish.
	ActivationSilu

	// ActivationMish is x·tanh(softplus(x)).
	ActivationMish
)

// leakyReluSlope is the gradient for negative inputs.
const leakyReluSlope = 0.02

var activationNames = map[string]Activation{
	"leaky_relu": ActivationLeakyRelu,
	"leakyrelu":  ActivationLeakyRelu,
	"silu":       ActivationSilu,
	"mish":       ActivationMish,
}

// String implements fmt.Stringer.
func (a Activation) String() string {
	switch a {
	case ActivationLeakyRelu:
		return "leaky_relu"
	case ActivationSilu:
		return "silu"
	case ActivationMish:
		return "mish"
	}
	return "invalid"
}

// ActivationFromName converts an activation name to its Activation value.
// Matching is case-insensitive. It panics on unknown names.
func ActivationFromName(name string) Activation {
	act, found := activationNames[strings.ToLower(name)]
	if !found {
		Panicf("unknown activation %q: valid values are leaky_relu, silu and mish", name)
	}
	return act
}

// Apply applies the activation to x.
func (a Activation) Apply(x *Node) *Node {
	switch a {
	case ActivationLeakyRelu:
		return activations.LeakyReluWithAlpha(x, leakyReluSlope)
	case ActivationSilu:
		return activations.Apply(activations.TypeSilu, x)
	case ActivationMish:
		return Mish(x)
	}
	Panicf("invalid activation value %d", a)
	return nil
}

// Mish is the self-regularizing activation x·tanh(softplus(x)).
func Mish(x *Node) *Node {
	return Mul(x, Tanh(Log1P(Exp(x))))
}
