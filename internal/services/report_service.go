package services

import (
	"context"
	"fmt"
	"io"

	"github.com/tealeg/xlsx"

	"gadgetshop/internal/repos"
)

// ReportService exports orders for the back office.
type ReportService struct {
	Orders *repos.OrderRepo
}

func NewReportService(orders *repos.OrderRepo) *ReportService {
	return &ReportService{Orders: orders}
}

var orderHeaders = []string{
	"ID", "Created", "Status", "Fulfillment", "First name", "Last name", "Email",
	"Phone", "Address", "Requested date", "Total", "Comment",
}

// OrdersXLSX writes the latest orders as a spreadsheet with one row per order.
func (s *ReportService) OrdersXLSX(ctx context.Context, w io.Writer, limit int) error {
	orders, err := s.Orders.ListLatest(ctx, limit)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range orderHeaders {
		header.AddCell().SetValue(h)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.CreatedAt)
		row.AddCell().SetValue(o.Status.Label())
		row.AddCell().SetValue(string(o.Fulfillment))
		row.AddCell().SetValue(o.FirstName)
		row.AddCell().SetValue(o.LastName)
		row.AddCell().SetValue(o.Email)
		row.AddCell().SetValue(o.Phone)
		row.AddCell().SetValue(o.Address)
		row.AddCell().SetValue(o.OrderDate)
		row.AddCell().SetValue(o.Total.StringFixed(2))
		row.AddCell().SetValue(o.Comment)
	}
	return file.Write(w)
}
