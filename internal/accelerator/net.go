package accelerator

import "github.com/lczerogo/engine/internal/network"

// NetEvaluator adapts a *network.Network's Winograd forward pass to the
// Evaluator interface.
type NetEvaluator struct {
	Net  *network.Network
	Temp float32
}

// Evaluate implements Evaluator.
func (e *NetEvaluator) Evaluate(planes []float32) ([]float32, float32, error) {
	policy, value := e.Net.Forward(planes, e.Temp)
	return policy, value, nil
}

// ReferenceEvaluator adapts a *network.Network's direct-convolution
// forward pass — independent of the Winograd engine — to the Evaluator
// interface, for use as the verification side of a SelfChecking pair.
type ReferenceEvaluator struct {
	Net  *network.Network
	Temp float32
}

// Evaluate implements Evaluator.
func (e *ReferenceEvaluator) Evaluate(planes []float32) ([]float32, float32, error) {
	policy, value := e.Net.ForwardReference(planes, e.Temp)
	return policy, value, nil
}
