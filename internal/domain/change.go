package domain

// ChangeEvent is one change-capture notification on a GenerationRequest.
// The concrete type is one of Inserted, Modified or Removed.
type ChangeEvent interface {
	changeEvent()
}

type Inserted struct {
	New GenerationRequest
}

type Modified struct {
	Old GenerationRequest
	New GenerationRequest
}

type Removed struct {
	Old GenerationRequest
}

func (Inserted) changeEvent() {}
func (Modified) changeEvent() {}
func (Removed) changeEvent()  {}
