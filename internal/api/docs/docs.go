// Package docs registers the swagger document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/actors": {
            "post": {"tags": ["关系链"], "summary": "注册 actor", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/service.CreateActorRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"tags": ["关系链"], "summary": "注销 actor", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/actors/notifications": {
            "put": {"tags": ["关系链"], "summary": "通知设置", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/entries": {
            "post": {"tags": ["发布"], "summary": "发布条目", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/service.PostRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}, "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/response.Response"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/entries/comments": {
            "post": {"tags": ["发布"], "summary": "评论条目", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/service.CommentRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/relations/follow": {
            "post": {"tags": ["关系链"], "summary": "关注", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/relations/unfollow": {
            "post": {"tags": ["关系链"], "summary": "取消关注", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/relations/approve": {
            "post": {"tags": ["关系链"], "summary": "通过关注请求", "parameters": [{"type": "string", "in": "header", "name": "X-Actor", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/relations/{nick}/followers": {
            "get": {"tags": ["关系链"], "summary": "查询关注者", "parameters": [{"type": "string", "in": "path", "name": "nick", "required": true}, {"type": "string", "in": "query", "name": "after"}, {"type": "integer", "default": 10, "in": "query", "name": "limit"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/tasks/process": {
            "post": {"tags": ["任务"], "summary": "推进待处理扇出任务", "parameters": [{"type": "string", "in": "query", "name": "actor"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "data": {}, "message": {"type": "string"}}
        },
        "service.PostRequest": {
            "type": "object",
            "required": ["message", "nick", "uuid"],
            "properties": {"nick": {"type": "string"}, "stream": {"type": "string"}, "uuid": {"type": "string"}, "title": {"type": "string"}, "message": {"type": "string"}, "location": {"type": "string"}}
        },
        "service.CommentRequest": {
            "type": "object",
            "required": ["content", "entry", "nick", "uuid"],
            "properties": {"nick": {"type": "string"}, "entry": {"type": "string"}, "uuid": {"type": "string"}, "content": {"type": "string"}}
        },
        "service.CreateActorRequest": {
            "type": "object",
            "required": ["nick"],
            "properties": {"nick": {"type": "string"}, "type": {"type": "string"}, "privacy": {"type": "integer"}, "im_address": {"type": "string"}, "mobile": {"type": "string"}, "email": {"type": "string"}, "notify_im": {"type": "boolean"}, "notify_sms": {"type": "boolean"}, "notify_email": {"type": "boolean"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "streamfan API",
	Description:      "Resumable post/comment fan-out service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
