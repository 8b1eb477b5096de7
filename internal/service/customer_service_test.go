package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
)

func newTestCustomerService(customerRepo *mockCustomerRepo) CustomerService {
	return NewCustomerService(customerRepo, zap.NewNop())
}

func TestCreateCustomer_TrimsFields(t *testing.T) {
	var created *domain.Customer
	customerRepo := &mockCustomerRepo{
		createFunc: func(customer *domain.Customer) error {
			customer.ID = 1
			created = customer
			return nil
		},
	}

	svc := newTestCustomerService(customerRepo)
	_, err := svc.CreateCustomer(&domain.CreateCustomerRequest{
		Name:    "  张三  ",
		Contact: " 13800138000 ",
		Address: " 上海市 ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Name != "张三" || created.Contact != "13800138000" || created.Address != "上海市" {
		t.Errorf("created = %+v, want trimmed fields", created)
	}
}

func TestCreateCustomer_BlankName(t *testing.T) {
	svc := newTestCustomerService(&mockCustomerRepo{})
	_, err := svc.CreateCustomer(&domain.CreateCustomerRequest{Name: "   "})

	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	svc := newTestCustomerService(&mockCustomerRepo{})
	_, err := svc.GetCustomer(404)
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("error = %v, want ErrCustomerNotFound", err)
	}
}

func TestUpdateCustomer_PartialUpdate(t *testing.T) {
	var updated *domain.Customer
	customerRepo := &mockCustomerRepo{
		getByIDFunc: func(id int64) (*domain.Customer, error) {
			return &domain.Customer{ID: id, Name: "张三", Contact: "13800138000", Address: "上海市"}, nil
		},
		updateFunc: func(customer *domain.Customer) error {
			updated = customer
			return nil
		},
	}

	svc := newTestCustomerService(customerRepo)
	contact := "13900139000"
	_, err := svc.UpdateCustomer(1, &domain.UpdateCustomerRequest{Contact: &contact})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Contact != "13900139000" {
		t.Errorf("contact = %q, want updated", updated.Contact)
	}
	if updated.Name != "张三" {
		t.Errorf("name = %q, should be unchanged", updated.Name)
	}
}

func TestDeleteCustomer_RefusesWithOrders(t *testing.T) {
	customerRepo := &mockCustomerRepo{
		getByIDFunc: func(id int64) (*domain.Customer, error) {
			return &domain.Customer{ID: id, Name: "张三"}, nil
		},
		hasOrdersFunc: func(id int64) (bool, error) {
			return true, nil
		},
	}

	svc := newTestCustomerService(customerRepo)
	err := svc.DeleteCustomer(1)
	if !errors.Is(err, ErrCustomerHasOrders) {
		t.Fatalf("error = %v, want ErrCustomerHasOrders", err)
	}
}
