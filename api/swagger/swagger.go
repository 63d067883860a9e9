package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Support API",
        "description": "Student-tutor pairing, slot scheduling and booking arbitration",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Directory", "description": "Tutor directory"},
        {"name": "Pairings", "description": "Student-tutor pairing requests"},
        {"name": "Slots", "description": "Tutor availability slots"},
        {"name": "Bookings", "description": "Booking request lifecycle"},
        {"name": "Programs", "description": "Support program registration"},
        {"name": "Users", "description": "Administration"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with student number and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/tutors": {
            "get": {
                "tags": ["Directory"],
                "summary": "List tutors available for pairing",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pairings": {
            "get": {
                "tags": ["Pairings"],
                "summary": "List the caller's pairing requests",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Pairings"],
                "summary": "Request pairing with a tutor",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectTutorRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutor/pairings": {
            "get": {
                "tags": ["Pairings"],
                "summary": "List pending pairing requests addressed to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutor/pairings/{id}/respond": {
            "post": {
                "tags": ["Pairings"],
                "summary": "Accept or reject a pairing request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondPairingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the addressed tutor"},
                    "409": {"description": "Request already resolved"}
                }
            }
        },
        "/tutor/slots": {
            "get": {
                "tags": ["Slots"],
                "summary": "List the caller's published slots",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Slots"],
                "summary": "Publish an available time slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Slot in the past"}
                }
            },
            "delete": {
                "tags": ["Slots"],
                "summary": "Remove an unbooked time slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeleteSlotRequest"}}
                ],
                "responses": {
                    "204": {"description": "Removed"},
                    "409": {"description": "Slot is booked"}
                }
            }
        },
        "/slots/available": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookable slots from the caller's accepted tutors",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List the caller's booking requests, newest first",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Request a booking for an available slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken or pending elsewhere"},
                    "412": {"description": "No accepted pairing with tutor"}
                }
            }
        },
        "/bookings/{id}": {
            "delete": {
                "tags": ["Bookings"],
                "summary": "Withdraw a pending booking request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Withdrawn"},
                    "412": {"description": "Request no longer pending"}
                }
            }
        },
        "/tutor/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List pending booking requests addressed to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutor/bookings/{id}/respond": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Accept or reject a booking request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the addressed tutor"},
                    "409": {"description": "Request already resolved"}
                }
            }
        },
        "/tutor/sessions": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List the caller's upcoming confirmed sessions",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutor/sessions/export": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Export the caller's upcoming sessions as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/appointments": {
            "post": {
                "tags": ["Slots"],
                "summary": "Book a slot immediately without tutor confirmation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DirectBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot already booked"}
                }
            }
        },
        "/programs": {
            "get": {
                "tags": ["Programs"],
                "summary": "List programs open for registration",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Programs"],
                "summary": "Create a support program",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProgramRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/programs/{id}/registrations": {
            "post": {
                "tags": ["Programs"],
                "summary": "Register the caller for a program",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already registered"},
                    "412": {"description": "Program closed"}
                }
            }
        },
        "/registrations": {
            "get": {
                "tags": ["Programs"],
                "summary": "List the caller's program registrations",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["student_no", "password"],
            "properties": {
                "student_no": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SelectTutorRequest": {
            "type": "object",
            "required": ["tutor_id"],
            "properties": {
                "tutor_id": {"type": "string"}
            }
        },
        "RespondPairingRequest": {
            "type": "object",
            "properties": {
                "accept": {"type": "boolean"},
                "reason": {"type": "string"}
            }
        },
        "CreateSlotRequest": {
            "type": "object",
            "required": ["start_time"],
            "properties": {
                "start_time": {"type": "string", "format": "date-time"}
            }
        },
        "DeleteSlotRequest": {
            "type": "object",
            "required": ["start_time"],
            "properties": {
                "start_time": {"type": "string", "format": "date-time"}
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "required": ["slot_id"],
            "properties": {
                "slot_id": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "RespondBookingRequest": {
            "type": "object",
            "properties": {
                "accept": {"type": "boolean"}
            }
        },
        "DirectBookingRequest": {
            "type": "object",
            "required": ["slot_id"],
            "properties": {
                "slot_id": {"type": "string"}
            }
        },
        "CreateProgramRequest": {
            "type": "object",
            "required": ["name", "semester"],
            "properties": {
                "name": {"type": "string"},
                "semester": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
