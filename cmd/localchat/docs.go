package main

// General API documentation for swaggo. Generate with `swag init -g cmd/localchat/docs.go`.
//
// @title           localchat API
// @version         1.0
// @description     HTTP API for chatting with, downloading and removing models served by local inference services.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
