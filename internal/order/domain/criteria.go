package domain

import (
	shared "github.com/davicafu/deliverylab/shared/domain"
)

// --- Criterios específicos para el dominio Order ---

// StatusCriteria busca pedidos por su estado exacto.
type StatusCriteria struct {
	Status OrderStatus
}

func (c StatusCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "status", Op: shared.OpEq, Value: c.Status},
	}
}

// StatusInCriteria busca pedidos cuyo estado esté en el conjunto dado.
type StatusInCriteria struct {
	Statuses []OrderStatus
}

func (c StatusInCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "status", Op: shared.OpIn, Value: c.Statuses},
	}
}

// RestaurantIDCriteria busca los pedidos de un restaurante.
type RestaurantIDCriteria struct {
	ID string
}

func (c RestaurantIDCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "restaurant_id", Op: shared.OpEq, Value: c.ID},
	}
}

// CustomerIDCriteria busca los pedidos de un cliente.
type CustomerIDCriteria struct {
	ID string
}

func (c CustomerIDCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "customer_id", Op: shared.OpEq, Value: c.ID},
	}
}

// NotArchivedCriteria excluye los pedidos archivados (archived != true).
type NotArchivedCriteria struct{}

func (NotArchivedCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{
		{Field: "archived", Op: shared.OpNe, Value: true},
	}
}
