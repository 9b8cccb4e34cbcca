package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/invoicedesk/internal/client/models"
)

// List loads and prints the given page of invoices.
func (a *App) List(ctx context.Context, page int) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	p, err := a.invoices.FindAll(ctx, page)
	if err != nil {
		return err
	}
	a.printPage(p)
	return nil
}

func (a *App) Next(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	p, err := a.invoices.Next(ctx)
	if err != nil {
		return err
	}
	a.printPage(p)
	return nil
}

func (a *App) Prev(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	p, err := a.invoices.Prev(ctx)
	if err != nil {
		return err
	}
	a.printPage(p)
	return nil
}

func (a *App) Show(ctx context.Context, id int64) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	inv, err := a.invoices.Get(ctx, id)
	if err != nil {
		return err
	}
	a.printInvoice(inv)
	return nil
}

// Add prompts for every field of a new invoice and creates it.
func (a *App) Add(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	inv := &models.Invoice{}
	if err := a.promptInvoice(inv); err != nil {
		return err
	}

	out, err := a.invoices.Create(ctx, inv)
	if err != nil {
		return err
	}
	a.printf("Created invoice %d (%s)\n", out.ID, out.InvoiceNumber)
	return nil
}

// Edit loads an invoice, prompts for each field with the current value as
// default, and saves it.
func (a *App) Edit(ctx context.Context, id int64) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	inv, err := a.invoices.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.promptInvoice(inv); err != nil {
		return err
	}

	out, err := a.invoices.Update(ctx, inv)
	if err != nil {
		return err
	}
	a.printf("Updated invoice %d (%s)\n", out.ID, out.InvoiceNumber)
	return nil
}

func (a *App) Delete(ctx context.Context, id int64) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete invoice %d? (y/N)", id), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		a.printf("Cancelled\n")
		return nil
	}

	if err := a.invoices.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted invoice %d\n", id)
	return nil
}

// Stats prints the refresh, retry and response counters of this process.
func (a *App) Stats() error {
	lines, err := a.metrics.Lines()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		a.printf("No requests yet\n")
		return nil
	}
	for _, l := range lines {
		a.printf("%s\n", l)
	}
	return nil
}

// promptInvoice fills inv from user input. Current values of inv are
// offered as defaults, so the same prompts serve add and edit.
func (a *App) promptInvoice(inv *models.Invoice) error {
	text := func(prompt, current string) (string, error) {
		if current == "" {
			return getSimpleText(a.reader, prompt, a.out)
		}
		return GetTextDefault(a.reader, prompt, current, a.out)
	}
	number := func(v int64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatInt(v, 10)
	}

	var err error
	if inv.InvoiceNumber, err = text("Invoice number", inv.InvoiceNumber); err != nil {
		return err
	}

	raw, err := text("Buyer NIP", number(inv.BuyerNIP))
	if err != nil {
		return err
	}
	if inv.BuyerNIP, err = parseInt64Field("buyer_nip", raw); err != nil {
		return err
	}

	raw, err = text("Seller NIP", number(inv.SellerNIP))
	if err != nil {
		return err
	}
	if inv.SellerNIP, err = parseInt64Field("seller_nip", raw); err != nil {
		return err
	}

	if inv.ProductName, err = text("Product name", inv.ProductName); err != nil {
		return err
	}

	price := ""
	if inv.ProductPrice != 0 {
		price = strconv.FormatFloat(inv.ProductPrice, 'f', 2, 64)
	}
	raw, err = text("Product price", price)
	if err != nil {
		return err
	}
	if inv.ProductPrice, err = parseFloatField("product_price", raw); err != nil {
		return err
	}
	return nil
}

func (a *App) printPage(p models.Page[models.Invoice]) {
	if len(p.Data) == 0 {
		a.printf("No invoices\n")
	} else {
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNUMBER\tBUYER NIP\tSELLER NIP\tPRODUCT\tPRICE\tISSUED")
		for _, inv := range p.Data {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%.2f\t%s\n",
				inv.ID, inv.InvoiceNumber, inv.BuyerNIP, inv.SellerNIP, inv.ProductName, inv.ProductPrice, deref(inv.IssueDate))
		}
		_ = tw.Flush()
	}
	a.printf("Page %d of %d (%d invoices)\n", p.CurrentPage, p.LastPage, p.Total)
}

func (a *App) printInvoice(inv *models.Invoice) {
	tw := tabwriter.NewWriter(a.out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", inv.ID)
	fmt.Fprintf(tw, "Number:\t%s\n", inv.InvoiceNumber)
	fmt.Fprintf(tw, "Buyer NIP:\t%d\n", inv.BuyerNIP)
	fmt.Fprintf(tw, "Seller NIP:\t%d\n", inv.SellerNIP)
	fmt.Fprintf(tw, "Product:\t%s\n", inv.ProductName)
	fmt.Fprintf(tw, "Price:\t%.2f\n", inv.ProductPrice)
	fmt.Fprintf(tw, "Issued:\t%s\n", deref(inv.IssueDate))
	fmt.Fprintf(tw, "Edited:\t%s\n", deref(inv.EditDate))
	_ = tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
