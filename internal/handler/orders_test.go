package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dinetab/api/internal/database"
	"github.com/dinetab/api/internal/enum"
	"github.com/dinetab/api/internal/handler"
	"github.com/dinetab/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Mock TabServicer ---

type mockTabService struct {
	submitFn  func(ctx context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error)
	approveFn func(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error)
	listFn    func(ctx context.Context, restaurantID uuid.UUID, status string) ([]service.OrderResult, error)
}

func (m *mockTabService) SubmitOrder(ctx context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error) {
	return m.submitFn(ctx, req)
}

func (m *mockTabService) ApproveOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	return m.approveFn(ctx, restaurantID, orderID)
}

func (m *mockTabService) ListOrders(ctx context.Context, restaurantID uuid.UUID, status string) ([]service.OrderResult, error) {
	return m.listFn(ctx, restaurantID, status)
}

func newPublicOrderRouter(svc *mockTabService) *chi.Mux {
	h := handler.NewOrderHandler(svc)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	return r
}

func newStaffOrderRouter(svc *mockTabService) *chi.Mux {
	h := handler.NewOrderHandler(svc)
	return newAuthedRouter("/orders", h.RegisterRoutes)
}

func testOrderResult(restaurantID, tableID, groupID uuid.UUID) service.OrderResult {
	now := time.Now()
	return service.OrderResult{
		Order: database.Order{
			ID:           uuid.New(),
			RestaurantID: restaurantID,
			TableID:      tableID,
			OrderGroupID: groupID,
			TotalCost:    testNumeric("100000"),
			Notes:        "no onions",
			Status:       enum.OrderStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		TableName: 5,
		Items: []service.OrderLine{
			{MenuItemID: uuid.New(), Name: "Pho", Quantity: 2, Price: decimal.NewFromInt(50000)},
		},
	}
}

// --- Submit ---

func TestOrderSubmit_HappyPath(t *testing.T) {
	restaurantID, tableID, groupID := uuid.New(), uuid.New(), uuid.New()
	itemID := uuid.New()

	svc := &mockTabService{
		submitFn: func(_ context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error) {
			if req.TableID != tableID.String() {
				t.Errorf("table_id: got %v, want %v", req.TableID, tableID)
			}
			if req.Notes != "no onions" {
				t.Errorf("notes: got %q", req.Notes)
			}
			if len(req.Items) != 1 || req.Items[0].ItemID != itemID.String() || req.Items[0].Quantity != 2 {
				t.Errorf("items: got %+v", req.Items)
			}
			return &service.SubmitResult{
				OrderResult:   testOrderResult(restaurantID, tableID, groupID),
				NewOrderGroup: true,
			}, nil
		},
	}

	rr := postJSON(t, newPublicOrderRouter(svc), "/orders/add", map[string]interface{}{
		"table_id": tableID.String(),
		"notes":    "no onions",
		"items":    []map[string]interface{}{{"item_id": itemID.String(), "quantity": 2}},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["new_order_group"] != true {
		t.Errorf("new_order_group: got %v, want true", resp["new_order_group"])
	}
	order, ok := resp["order"].(map[string]interface{})
	if !ok {
		t.Fatal("expected order object in response")
	}
	if order["total_cost"] != "100000.00" {
		t.Errorf("total_cost: got %v, want 100000.00", order["total_cost"])
	}
	if order["order_group_id"] != groupID.String() {
		t.Errorf("order_group_id: got %v, want %v", order["order_group_id"], groupID)
	}
	if order["table_name"] != float64(5) {
		t.Errorf("table_name: got %v, want 5", order["table_name"])
	}
	items := order["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items count: got %d, want 1", len(items))
	}
	line := items[0].(map[string]interface{})
	if line["price"] != "50000.00" || line["quantity"] != float64(2) {
		t.Errorf("line: got %v", line)
	}
}

func TestOrderSubmit_LenientQuantity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int32
	}{
		{"number", `3`, 3},
		{"numeric string", `"4"`, 4},
		{"zero", `0`, 1},
		{"negative", `-2`, 1},
		{"null", `null`, 1},
		{"garbage", `"lots"`, 1},
		{"upper bound", `1000`, 1000},
		{"whole float", `2.0`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int32
			svc := &mockTabService{
				submitFn: func(_ context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error) {
					got = req.Items[0].Quantity
					return &service.SubmitResult{OrderResult: testOrderResult(uuid.New(), uuid.New(), uuid.New())}, nil
				},
			}

			body := `{"table_id":"` + uuid.NewString() + `","items":[{"item_id":"` + uuid.NewString() + `","quantity":` + tt.raw + `}]}`
			req := httptest.NewRequest("POST", "/orders/add", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			newPublicOrderRouter(svc).ServeHTTP(rr, req)

			if rr.Code != http.StatusCreated {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
			}
			if got != tt.want {
				t.Errorf("quantity: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOrderSubmit_InvalidQuantity(t *testing.T) {
	for _, raw := range []string{`1001`, `5000`, `"5000"`, `2.5`, `"1.5"`} {
		t.Run(raw, func(t *testing.T) {
			svc := &mockTabService{
				submitFn: func(context.Context, service.SubmitOrderRequest) (*service.SubmitResult, error) {
					t.Fatal("service must not be called")
					return nil, nil
				},
			}

			body := `{"table_id":"` + uuid.NewString() + `","items":[{"item_id":"` + uuid.NewString() + `","quantity":` + raw + `}]}`
			req := httptest.NewRequest("POST", "/orders/add", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			newPublicOrderRouter(svc).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			var resp map[string]interface{}
			decodeInto(t, rr, &resp)
			if resp["code"] != "INVALID_QUANTITY" {
				t.Errorf("code: got %v, want INVALID_QUANTITY", resp["code"])
			}
		})
	}
}

func TestOrderSubmit_MissingQuantityDefaultsToOne(t *testing.T) {
	var got int32
	svc := &mockTabService{
		submitFn: func(_ context.Context, req service.SubmitOrderRequest) (*service.SubmitResult, error) {
			got = req.Items[0].Quantity
			return &service.SubmitResult{OrderResult: testOrderResult(uuid.New(), uuid.New(), uuid.New())}, nil
		},
	}

	rr := postJSON(t, newPublicOrderRouter(svc), "/orders/add", map[string]interface{}{
		"table_id": uuid.NewString(),
		"items":    []map[string]interface{}{{"item_id": uuid.NewString()}},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got != 1 {
		t.Errorf("quantity: got %d, want 1", got)
	}
}

func TestOrderSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		wantCode string
	}{
		{
			name:     "missing table",
			body:     map[string]interface{}{"items": []map[string]interface{}{{"item_id": uuid.NewString(), "quantity": 1}}},
			wantCode: "TABLE_ID_REQUIRED",
		},
		{
			name:     "no items",
			body:     map[string]interface{}{"table_id": uuid.NewString(), "items": []interface{}{}},
			wantCode: "ITEMS_REQUIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTabService{
				submitFn: func(context.Context, service.SubmitOrderRequest) (*service.SubmitResult, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			}
			rr := postJSON(t, newPublicOrderRouter(svc), "/orders/add", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if resp := decodeResponse(t, rr); resp["code"] != tt.wantCode {
				t.Errorf("code: got %v, want %v", resp["code"], tt.wantCode)
			}
		})
	}
}

func TestOrderSubmit_InvalidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/orders/add", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	newPublicOrderRouter(&mockTabService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderSubmit_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid table", service.ErrInvalidTableID, http.StatusBadRequest, "INVALID_TABLE_ID"},
		{"table not found", service.ErrTableNotFound, http.StatusNotFound, "TABLE_NOT_FOUND"},
		{"item not found", service.ErrMenuItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND"},
		{"settled meanwhile", service.ErrOrderGroupClosed, http.StatusConflict, "ORDER_GROUP_CLOSED"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTabService{
				submitFn: func(context.Context, service.SubmitOrderRequest) (*service.SubmitResult, error) {
					return nil, tt.err
				},
			}
			rr := postJSON(t, newPublicOrderRouter(svc), "/orders/add", map[string]interface{}{
				"table_id": uuid.NewString(),
				"items":    []map[string]interface{}{{"item_id": uuid.NewString(), "quantity": 1}},
			})
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decodeResponse(t, rr)
			if tt.wantCode != "" && resp["code"] != tt.wantCode {
				t.Errorf("code: got %v, want %v", resp["code"], tt.wantCode)
			}
			if tt.wantCode == "" && resp["error"] != "internal server error" {
				t.Errorf("error: got %v, want internal server error", resp["error"])
			}
		})
	}
}

// --- List / Approve ---

func TestOrderList_FiltersByRoute(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus string
	}{
		{"/orders/", ""},
		{"/orders/pending", enum.OrderStatusPending},
		{"/orders/approved", enum.OrderStatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			restaurantID := uuid.New()
			claims := testClaims(restaurantID)
			svc := &mockTabService{
				listFn: func(_ context.Context, rid uuid.UUID, status string) ([]service.OrderResult, error) {
					if rid != restaurantID {
						t.Errorf("restaurant_id: got %v, want %v", rid, restaurantID)
					}
					if status != tt.wantStatus {
						t.Errorf("status filter: got %q, want %q", status, tt.wantStatus)
					}
					return []service.OrderResult{testOrderResult(rid, uuid.New(), uuid.New())}, nil
				},
			}

			rr := doAuthRequest(t, newStaffOrderRouter(svc), "GET", tt.path, nil, claims)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
			}
			orders := decodeResponse(t, rr)["orders"].([]interface{})
			if len(orders) != 1 {
				t.Errorf("orders count: got %d, want 1", len(orders))
			}
		})
	}
}

func TestOrderList_NoAuth(t *testing.T) {
	rr := doAuthRequest(t, newStaffOrderRouter(&mockTabService{}), "GET", "/orders/", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestOrderApprove_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	orderID := uuid.New()
	svc := &mockTabService{
		approveFn: func(_ context.Context, rid, oid uuid.UUID) (database.Order, error) {
			if rid != restaurantID || oid != orderID {
				t.Errorf("ids: got %v/%v", rid, oid)
			}
			o := testOrderResult(rid, uuid.New(), uuid.New()).Order
			o.ID = oid
			o.Status = enum.OrderStatusAccepted
			return o, nil
		},
	}

	rr := doAuthRequest(t, newStaffOrderRouter(svc), "PUT", "/orders/"+orderID.String()+"/approve", nil, testClaims(restaurantID))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	order := decodeResponse(t, rr)["order"].(map[string]interface{})
	if order["status"] != enum.OrderStatusAccepted {
		t.Errorf("status: got %v, want %v", order["status"], enum.OrderStatusAccepted)
	}
}

func TestOrderApprove_NotFound(t *testing.T) {
	svc := &mockTabService{
		approveFn: func(context.Context, uuid.UUID, uuid.UUID) (database.Order, error) {
			return database.Order{}, service.ErrOrderNotFound
		},
	}

	rr := doAuthRequest(t, newStaffOrderRouter(svc), "PUT", "/orders/"+uuid.NewString()+"/approve", nil, testClaims(uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if resp := decodeResponse(t, rr); resp["code"] != "ORDER_NOT_FOUND" {
		t.Errorf("code: got %v, want ORDER_NOT_FOUND", resp["code"])
	}
}

func TestOrderApprove_InvalidID(t *testing.T) {
	rr := doAuthRequest(t, newStaffOrderRouter(&mockTabService{}), "PUT", "/orders/not-a-uuid/approve", nil, testClaims(uuid.New()))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
