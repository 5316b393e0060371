package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"

	"go.uber.org/zap"
)

const billHelp = `Commands:
  products [search]        list products in stock
  add <productId> <qty>    add a line
  remove <line>            remove a line by its number
  phone <number>           customer phone (required)
  map <link>               Google Maps link
  notes <text>             special notes
  preview                  show the receipt
  checkout                 place the order
  retry                    attach the items of a half-placed order again
  clear                    start over
  exit                     leave billing`

// billing is the state of one bill REPL.
type billing struct {
	draft    *cart.Draft
	products []api.Product
	pending  *cart.PartialCheckoutError
}

func (r *Runner) runBill(ctx context.Context) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	products, err := r.products(ctx)
	if err != nil {
		return err
	}

	b := &billing{
		draft:    cart.NewDraft(r.builder),
		products: catalog.Available(products),
	}

	reader := bufio.NewScanner(r.in)
	r.printf("Billing: %d products in stock. Type 'help' for commands.\n", len(b.products))
	for {
		r.printf("bill> ")
		if !reader.Scan() {
			return reader.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(reader.Text())
		command, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(command) {
		case "":
			continue
		case "exit", "quit":
			if b.pending != nil {
				r.printf("Order %s still has no items attached.\n", b.pending.OrderID)
			}
			return nil
		case "help":
			r.println(billHelp)
			continue
		}

		if err := r.billCommand(ctx, b, strings.ToLower(command), rest); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.Info("bill command failed", zap.String("command", command), zap.Error(err))
			r.printf("! %s\n", friendlyError(err))
		}
	}
}

func (r *Runner) billCommand(ctx context.Context, b *billing, command, rest string) error {
	switch command {
	case "products", "search":
		r.writeProducts(catalog.Filter(b.products, rest, ""))
	case "add":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return usage("add <productId> <qty>")
		}
		candidate, qty, err := pickCandidate(b.products, fields[0], fields[1])
		if err != nil {
			return err
		}
		if err := b.draft.Add(candidate, qty); err != nil {
			return err
		}
		r.showCart(b.draft.Cart())
	case "remove", "rm":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > b.draft.Cart().Len() {
			return usage("remove <line>, between 1 and %d", b.draft.Cart().Len())
		}
		b.draft.Remove(n - 1)
		r.showCart(b.draft.Cart())
	case "phone":
		b.draft.SetPhone(rest)
	case "map":
		b.draft.SetMapLink(rest)
	case "notes":
		b.draft.SetNotes(rest)
	case "preview":
		receipt, err := b.draft.Preview()
		if err != nil {
			return err
		}
		r.println(receipt.Text)
	case "checkout":
		return r.billCheckout(ctx, b)
	case "retry":
		return r.billRetry(ctx, b)
	case "clear":
		b.draft.Reset()
		r.println("Bill cleared.")
	default:
		return usage("unknown bill command %q, type 'help'", command)
	}
	return nil
}

func (r *Runner) billCheckout(ctx context.Context, b *billing) error {
	if b.pending != nil {
		return fmt.Errorf("order %s is waiting for its items; use 'retry' or 'clear' first", b.pending.OrderID)
	}
	receipt, err := b.draft.Preview()
	if err != nil {
		return err
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}

	res, err := r.checkout.Submit(ctx, s, receipt)
	var partial *cart.PartialCheckoutError
	if errors.As(err, &partial) {
		b.pending = partial
		return err
	}
	if err != nil {
		return err
	}

	r.printf("Order %s placed, %s.\n", res.OrderID, r.amount(res.Receipt.GrandTotal))
	b.draft.Reset()
	return nil
}

func (r *Runner) billRetry(ctx context.Context, b *billing) error {
	if b.pending == nil {
		return errors.New("nothing to retry")
	}
	s, err := r.session(ctx)
	if err != nil {
		return err
	}
	if err := r.checkout.RetryAttach(ctx, s, b.pending); err != nil {
		return err
	}
	r.printf("Items attached to order %s.\n", b.pending.OrderID)
	b.pending = nil
	b.draft.Reset()
	return nil
}

func (r *Runner) showCart(c cart.Cart) {
	if c.IsEmpty() {
		r.println("- (cart is empty)")
		return
	}
	tw := newTable(r.out, "#", "ITEM", "QTY", "PRICE", "TOTAL")
	for i, it := range c.Items() {
		row(tw, strconv.Itoa(i+1), it.Name, strconv.Itoa(it.Quantity), r.amount(it.UnitPrice), r.amount(it.LineTotal))
	}
	_ = tw.Flush()
	r.printf("Subtotal: %s\n", r.amount(c.Subtotal()))
}
