package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnPreparing() (OrderState, error)
	OnOutForDelivery() (OrderState, error)
	OnDelivered() (OrderState, error)
	OnCancelled() (OrderState, error)
}

func stateFor(s Status) (OrderState, error) {
	switch s {
	case StatusConfirmed:
		return confirmedState{}, nil
	case StatusPreparing:
		return preparingState{}, nil
	case StatusOutForDelivery:
		return outForDeliveryState{}, nil
	case StatusDelivered:
		return deliveredState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	default:
		return nil, ErrInvalidStateTransition
	}
}

type confirmedState struct{}

func (confirmedState) Status() Status                        { return StatusConfirmed }
func (confirmedState) OnPreparing() (OrderState, error)      { return preparingState{}, nil }
func (confirmedState) OnOutForDelivery() (OrderState, error) { return nil, ErrInvalidStateTransition }
func (confirmedState) OnDelivered() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (confirmedState) OnCancelled() (OrderState, error)      { return cancelledState{}, nil }

type preparingState struct{}

func (preparingState) Status() Status                        { return StatusPreparing }
func (preparingState) OnPreparing() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (preparingState) OnOutForDelivery() (OrderState, error) { return outForDeliveryState{}, nil }
func (preparingState) OnDelivered() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (preparingState) OnCancelled() (OrderState, error)      { return cancelledState{}, nil }

type outForDeliveryState struct{}

func (outForDeliveryState) Status() Status                        { return StatusOutForDelivery }
func (outForDeliveryState) OnPreparing() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (outForDeliveryState) OnOutForDelivery() (OrderState, error) { return nil, ErrInvalidStateTransition }
func (outForDeliveryState) OnDelivered() (OrderState, error)      { return deliveredState{}, nil }
func (outForDeliveryState) OnCancelled() (OrderState, error)      { return cancelledState{}, nil }

// deliveredState and cancelledState are terminal.
type deliveredState struct{}

func (deliveredState) Status() Status                        { return StatusDelivered }
func (deliveredState) OnPreparing() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (deliveredState) OnOutForDelivery() (OrderState, error) { return nil, ErrInvalidStateTransition }
func (deliveredState) OnDelivered() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (deliveredState) OnCancelled() (OrderState, error)      { return nil, ErrInvalidStateTransition }

type cancelledState struct{}

func (cancelledState) Status() Status                        { return StatusCancelled }
func (cancelledState) OnPreparing() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (cancelledState) OnOutForDelivery() (OrderState, error) { return nil, ErrInvalidStateTransition }
func (cancelledState) OnDelivered() (OrderState, error)      { return nil, ErrInvalidStateTransition }
func (cancelledState) OnCancelled() (OrderState, error)      { return nil, ErrInvalidStateTransition }
