package domain

import "fmt"

// OrderStatus es el valor persistido en el campo status del pedido.
// Conviven dos vocabularios (el del panel del restaurante y el de la app de cliente);
// ambos se aceptan tal cual y se reconcilian mediante Stage.
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "placed"
	StatusOrderReceived  OrderStatus = "Order Received"
	StatusPreparing      OrderStatus = "Preparing"
	StatusOnTheWay       OrderStatus = "On the Way"
	StatusPickupReady    OrderStatus = "Pick-up Ready"
	StatusDelivered      OrderStatus = "Delivered"
	StatusPickedUp       OrderStatus = "Picked Up"
	StatusCancelled      OrderStatus = "Cancelled"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
)

// Stage es la etapa canónica de un estado. Dos estados de vocabularios distintos
// con la misma Stage significan lo mismo.
type Stage int

const (
	StagePlaced Stage = iota
	StageReceived
	StagePreparing
	StageHandoff // listo para recoger o en reparto
	StageCompleted
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StagePlaced:
		return "placed"
	case StageReceived:
		return "received"
	case StagePreparing:
		return "preparing"
	case StageHandoff:
		return "handoff"
	case StageCompleted:
		return "completed"
	case StageCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// stages es la tabla de correspondencia entre ambos vocabularios.
var stages = map[OrderStatus]Stage{
	StatusPlaced:         StagePlaced,
	StatusOrderReceived:  StageReceived,
	StatusPreparing:      StagePreparing,
	StatusConfirmed:      StagePreparing,
	StatusPickupReady:    StageHandoff,
	StatusReadyForPickup: StageHandoff,
	StatusOnTheWay:       StageHandoff,
	StatusOutForDelivery: StageHandoff,
	StatusDelivered:      StageCompleted,
	StatusPickedUp:       StageCompleted,
	StatusCancelled:      StageCancelled,
}

// AllStatuses devuelve los valores aceptados, en el orden en que los documenta la API.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPlaced, StatusOrderReceived, StatusPreparing, StatusOnTheWay, StatusPickupReady,
		StatusDelivered, StatusPickedUp, StatusCancelled, StatusConfirmed, StatusReadyForPickup,
		StatusOutForDelivery,
	}
}

// TerminalStatuses es también el conjunto elegible para archivar.
func TerminalStatuses() []OrderStatus {
	return []OrderStatus{StatusDelivered, StatusPickedUp, StatusCancelled}
}

// ParseStatus valida que s pertenezca a la enumeración.
func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := stages[s]
	return ok
}

// Stage devuelve la etapa canónica. Para valores fuera de la enumeración devuelve -1.
func (s OrderStatus) Stage() Stage {
	st, ok := stages[s]
	if !ok {
		return -1
	}
	return st
}

func (s OrderStatus) IsTerminal() bool {
	st := s.Stage()
	return st == StageCompleted || st == StageCancelled
}

// CanTransition es la tabla de transiciones: desde un estado no terminal se puede
// cancelar o avanzar a una etapa estrictamente posterior. Nunca se retrocede ni se
// cambia de vocabulario dentro de la misma etapa.
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() || from == to || from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return to.Stage() > from.Stage()
}
