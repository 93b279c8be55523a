package utils

import (
	"github.com/kataras/iris/v12"
)

func JSONError(ctx iris.Context, status int, code, message string) {
	ctx.StopWithJSON(status, iris.Map{"error": code, "message": message})
}

// JSONList writes a plain list payload with its length.
func JSONList(ctx iris.Context, data interface{}, total int) {
	ctx.JSON(iris.Map{
		"data":  data,
		"total": total,
	})
}

// JSONWarning answers with a multi-status body: the first write succeeded,
// a follow-up step did not.
func JSONWarning(ctx iris.Context, data interface{}, warning string) {
	ctx.StatusCode(iris.StatusMultiStatus)
	ctx.JSON(iris.Map{
		"data":    data,
		"warning": warning,
	})
}
