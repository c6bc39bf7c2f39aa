package brisa

import "encoding/json"

// JSONResponse marshals v as the JSON response body.
func (ctx *RequestCtx) JSONResponse(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return Wrap(KindHandler, err, "marshaling JSON response")
	}
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(body)
	return nil
}

// TextResponse sets s as a text/plain response body.
func (ctx *RequestCtx) TextResponse(s string) error {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(s)
	return nil
}

// RawResponse sets body as the response with an explicit content type.
func (ctx *RequestCtx) RawResponse(body []byte, contentType string) error {
	ctx.SetContentType(contentType)
	ctx.SetBody(body)
	return nil
}

// StatusResponse sets the response status code with no body, e.g. for 204.
func (ctx *RequestCtx) StatusResponse(code int) error {
	ctx.SetStatusCode(code)
	return nil
}
