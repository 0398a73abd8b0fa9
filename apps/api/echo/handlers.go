package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core/school"
)

// The handlers below adapt portal operations: they resolve the actor, bind the request and render the result.

func bind(ctx echo.Context, in interface{}) error {
	if err := ctx.Bind(in); err != nil {
		return errors.Wrapf(err, "binding to %T", in)
	}
	return nil
}

func respond(ctx echo.Context, code int, out interface{}, err error) error {
	if err != nil {
		return err
	}
	return ctx.JSON(code, out)
}

func create[In, Out any](fn func(ctx context.Context, actor school.Actor, in In) (Out, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		var in In
		if err = bind(ctx, &in); err != nil {
			return err
		}
		out, err := fn(ctx.Request().Context(), actor, in)
		return respond(ctx, http.StatusCreated, out, err)
	}
}

func update[In, Out any](fn func(ctx context.Context, actor school.Actor, id string, in In) (Out, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		var in In
		if err = bind(ctx, &in); err != nil {
			return err
		}
		out, err := fn(ctx.Request().Context(), actor, ctx.Param("id"), in)
		return respond(ctx, http.StatusOK, out, err)
	}
}

func retrieve[Out any](fn func(ctx context.Context, actor school.Actor, id string) (Out, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		out, err := fn(ctx.Request().Context(), actor, ctx.Param("id"))
		return respond(ctx, http.StatusOK, out, err)
	}
}

func query[Out any](fn func(ctx context.Context, actor school.Actor) ([]Out, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		rows, err := fn(ctx.Request().Context(), actor)
		if rows == nil {
			rows = []Out{}
		}
		return respond(ctx, http.StatusOK, rows, err)
	}
}

// queryBy is query for listings narrowed by a request value (see queryParam and pathParam).
func queryBy[Out any](value func(echo.Context) string, fn func(ctx context.Context, actor school.Actor, value string) ([]Out, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return query[Out](func(c context.Context, actor school.Actor) ([]Out, error) {
			return fn(c, actor, value(ctx))
		})(ctx)
	}
}

func queryParam(name string) func(echo.Context) string {
	return func(ctx echo.Context) string { return ctx.QueryParam(name) }
}

func pathParam(name string) func(echo.Context) string {
	return func(ctx echo.Context) string { return ctx.Param(name) }
}

func destroy(fn func(ctx context.Context, actor school.Actor, id string) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		if err = fn(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
			return err
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}
