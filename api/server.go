// Package api exposes the library resources over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"library-service/library"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the HTTP front of a LibraryManager.
type Server struct {
	app *fiber.App
	lm  *library.LibraryManager
	log *slog.Logger
}

func New(lm *library.LibraryManager, auth Authenticator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{lm: lm, log: log}

	s.app = fiber.New(fiber.Config{
		AppName:               "librarian",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(log, auth.Challenge()),
	})

	s.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	s.app.Use(requestLogger(log))
	s.app.Use(recover.New())

	s.app.Get("/healthz", s.health)

	r := s.app.Group("/api", authenticate(auth))
	mount(r, "/authors", endpoints[library.AuthorQuery, library.AuthorInput, library.AuthorView, library.AuthorView]{
		resource: library.ResourceAuthor,
		parse:    func(v url.Values) (library.AuthorQuery, error) { return library.ParseAuthorQuery(v), nil },
		list:     lm.ListAuthors,
		get:      lm.GetAuthor,
		create:   lm.CreateAuthor,
		update:   lm.UpdateAuthor,
		patch:    lm.PartialUpdateAuthor,
		remove:   lm.DeleteAuthor,
	})
	mount(r, "/books", endpoints[library.BookQuery, library.BookInput, library.BookDetailView, library.BookListView]{
		resource: library.ResourceBook,
		parse:    library.ParseBookQuery,
		list:     lm.ListBooks,
		get:      lm.GetBook,
		create:   lm.CreateBook,
		update:   lm.UpdateBook,
		patch:    lm.PartialUpdateBook,
		remove:   lm.DeleteBook,
	})
	mount(r, "/members", endpoints[library.MemberQuery, library.MemberInput, library.MemberView, library.MemberView]{
		resource: library.ResourceMember,
		parse:    func(v url.Values) (library.MemberQuery, error) { return library.ParseMemberQuery(v), nil },
		list:     lm.ListMembers,
		get:      lm.GetMember,
		create:   lm.CreateMember,
		update:   lm.UpdateMember,
		patch:    lm.PartialUpdateMember,
		remove:   lm.DeleteMember,
	})
	mount(r, "/borrow-records", endpoints[library.BorrowRecordQuery, library.BorrowRecordInput, library.BorrowRecordView, library.BorrowRecordView]{
		resource: library.ResourceBorrowRecord,
		parse:    library.ParseBorrowRecordQuery,
		list:     lm.ListBorrowRecords,
		get:      lm.GetBorrowRecord,
		create:   lm.CreateBorrowRecord,
		update:   lm.UpdateBorrowRecord,
		patch:    lm.PartialUpdateBorrowRecord,
		remove:   lm.DeleteBorrowRecord,
	})

	return s
}

// App returns the underlying fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := s.lm.Database().Ping(ctx); err != nil {
		s.log.Warn("health check failed", "err", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// requestLogger logs one line per request once the error handler has run,
// so the logged status is the one sent to the client.
func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		log.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return nil
	}
}

func detail(msg string) fiber.Map {
	return fiber.Map{"detail": msg}
}

func errorHandler(log *slog.Logger, challenge string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			verr     *library.ValidationError
			notFound *library.NotFoundError
			authzErr *library.AuthorizationError
			fiberErr *fiber.Error
		)

		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(verr.Fields)

		case errors.Is(err, library.ErrNotAuthenticated):
			if challenge != "" {
				c.Set(fiber.HeaderWWWAuthenticate, challenge)
			}
			msg := "Invalid username/password."
			if errors.As(err, &authzErr) {
				msg = "Authentication credentials were not provided."
			}
			return c.Status(fiber.StatusUnauthorized).JSON(detail(msg))

		case errors.Is(err, library.ErrPermissionDenied):
			return c.Status(fiber.StatusForbidden).JSON(detail("You do not have permission to perform this action."))

		case errors.As(err, &notFound):
			msg := "Not found."
			if notFound.Field != "" {
				msg = err.Error()
			}
			return c.Status(fiber.StatusNotFound).JSON(detail(msg))

		case errors.As(err, &fiberErr):
			if fiberErr.Code == fiber.StatusNotFound {
				return c.Status(fiberErr.Code).JSON(detail("Not found."))
			}
			return c.Status(fiberErr.Code).JSON(detail(fiberErr.Message))
		}

		log.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"err", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(detail("A server error occurred."))
	}
}
