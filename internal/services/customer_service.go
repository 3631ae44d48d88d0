package services

import (
	"context"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
)

type CustomerService struct {
	Customers *repos.CustomerRepo
	Orders    *repos.OrderRepo
}

func NewCustomerService(customers *repos.CustomerRepo, orders *repos.OrderRepo) *CustomerService {
	return &CustomerService{Customers: customers, Orders: orders}
}

// CustomerOrders is a customer with every order it has placed.
type CustomerOrders struct {
	repos.CustomerRow
	Orders []domain.Order
}

// Page lists customers with their orders, and the total number of customers.
func (s *CustomerService) Page(ctx context.Context, page, pageSize int) ([]CustomerOrders, int, error) {
	total, err := s.Customers.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paginate(page, pageSize)
	rows, err := s.Customers.Page(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	byCustomer, err := s.Orders.ListByCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	out := make([]CustomerOrders, 0, len(rows))
	for _, r := range rows {
		out = append(out, CustomerOrders{CustomerRow: r, Orders: byCustomer[r.ID]})
	}
	return out, total, nil
}
