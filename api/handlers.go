package api

import (
	"context"
	"net/url"
	"strconv"

	"library-service/library"

	"github.com/gofiber/fiber/v2"
)

// endpoints binds one resource's six operations. Q is the parsed list query,
// I the write input, V the single-item view and L the list item view.
type endpoints[Q, I, V, L any] struct {
	resource library.Resource
	parse    func(url.Values) (Q, error)
	list     func(context.Context, library.Caller, Q) ([]L, error)
	get      func(context.Context, library.Caller, int64) (V, error)
	create   func(context.Context, library.Caller, I) (V, error)
	update   func(context.Context, library.Caller, int64, I) (V, error)
	patch    func(context.Context, library.Caller, int64, I) (V, error)
	remove   func(context.Context, library.Caller, int64) error
}

func mount[Q, I, V, L any](r fiber.Router, path string, e endpoints[Q, I, V, L]) {
	r.Get(path, e.handleList)
	r.Post(path, e.handleCreate)
	r.Get(path+"/:id", e.handleGet)
	r.Put(path+"/:id", e.handleWrite(library.OpUpdate, e.update))
	r.Patch(path+"/:id", e.handleWrite(library.OpPartialUpdate, e.patch))
	r.Delete(path+"/:id", e.handleDelete)
}

// pathID parses the :id segment. Anything that is not an integer cannot name
// a row, so it is reported as not found.
func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.ErrNotFound
	}
	return id, nil
}

// guard runs the access check. It must precede path and body parsing.
func (e endpoints[Q, I, V, L]) guard(c *fiber.Ctx, op library.Operation) error {
	return library.Authorize(callerOf(c), e.resource, op)
}

func queryParams(c *fiber.Ctx) (url.Values, error) {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		verr := &library.ValidationError{}
		verr.Add("non_field_errors", "Invalid query string.")
		return nil, verr
	}
	return values, nil
}

func (e endpoints[Q, I, V, L]) handleList(c *fiber.Ctx) error {
	if err := e.guard(c, library.OpList); err != nil {
		return err
	}
	params, err := queryParams(c)
	if err != nil {
		return err
	}
	q, err := e.parse(params)
	if err != nil {
		return err
	}

	items, err := e.list(c.UserContext(), callerOf(c), q)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (e endpoints[Q, I, V, L]) handleGet(c *fiber.Ctx) error {
	if err := e.guard(c, library.OpRetrieve); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	item, err := e.get(c.UserContext(), callerOf(c), id)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (e endpoints[Q, I, V, L]) handleCreate(c *fiber.Ctx) error {
	if err := e.guard(c, library.OpCreate); err != nil {
		return err
	}
	var in I
	if err := library.DecodeInput(c.Body(), &in); err != nil {
		return err
	}

	item, err := e.create(c.UserContext(), callerOf(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (e endpoints[Q, I, V, L]) handleWrite(op library.Operation, write func(context.Context, library.Caller, int64, I) (V, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := e.guard(c, op); err != nil {
			return err
		}
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var in I
		if err := library.DecodeInput(c.Body(), &in); err != nil {
			return err
		}

		item, err := write(c.UserContext(), callerOf(c), id, in)
		if err != nil {
			return err
		}
		return c.JSON(item)
	}
}

func (e endpoints[Q, I, V, L]) handleDelete(c *fiber.Ctx) error {
	if err := e.guard(c, library.OpDelete); err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := e.remove(c.UserContext(), callerOf(c), id); err != nil {
		return err
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}
