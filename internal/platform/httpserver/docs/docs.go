// Package docs registers the OpenAPI document served under /swagger/.
// Keep it in sync with the godoc annotations on the HTTP adapters.
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
        "/claim": {
            "post": {
                "description": "Queues a claim for settlement. Resubmitting the same wallet, amount, token and claimId returns alreadyClaimed.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "claim-settlement"
                ],
                "summary": "Submit a reward claim",
                "parameters": [
                    {
                        "description": "Claim payload",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.SubmitClaimRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.SubmitClaimResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/claim/{idempo_key}": {
            "get": {
                "description": "Returns the ledger row for an idempotency key.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "claim-settlement"
                ],
                "summary": "Get claim status",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Idempotency key",
                        "name": "idempo_key",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.GetClaimResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/health/claims": {
            "get": {
                "description": "Returns claim counts per status, the age of the oldest lease and today's cap usage per token.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "claim-settlement"
                ],
                "summary": "Settlement health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ClaimsHealthResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/claim-settlement.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/tx-guard": {
            "post": {
                "description": "Holds the (wallet, mode, countryId, amount) tuple so a repeated submission is refused until the guard is released or expires.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tx-guard"
                ],
                "summary": "Acquire a transaction guard",
                "parameters": [
                    {
                        "description": "Write intent",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tx-guard.AcquireGuardRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.GuardResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    }
                }
            },
            "patch": {
                "description": "Records that the guarded transaction was broadcast. Repeating the call is safe.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tx-guard"
                ],
                "summary": "Mark a guard as sent",
                "parameters": [
                    {
                        "description": "Lock key",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tx-guard.MarkSentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.GuardResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "description": "Frees the guarded tuple early. Releasing an expired or unknown lock key succeeds.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tx-guard"
                ],
                "summary": "Release a guard",
                "parameters": [
                    {
                        "description": "Lock key",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ReleaseGuardRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ReleaseGuardResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/tx-guard/onboarding": {
            "post": {
                "description": "Applies the per-IP and per-wallet onboarding limits and holds the wallet's onboarding slot.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "tx-guard"
                ],
                "summary": "Admit an onboarding request",
                "parameters": [
                    {
                        "description": "Wallet",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tx-guard.AdmitOnboardingRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.GuardResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {
                            "$ref": "#/definitions/tx-guard.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "claim-settlement.SubmitClaimRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "string"
                },
                "claimId": {
                    "type": "string"
                },
                "token": {
                    "type": "string"
                },
                "wallet": {
                    "type": "string"
                }
            }
        },
        "claim-settlement.SubmitClaimResponse": {
            "type": "object",
            "properties": {
                "alreadyClaimed": {
                    "type": "boolean"
                },
                "capDeferred": {
                    "type": "boolean"
                },
                "idempoKey": {
                    "type": "string"
                },
                "ok": {
                    "type": "boolean"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "claim-settlement.ClaimDTO": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "string"
                },
                "attempts": {
                    "type": "integer"
                },
                "claimId": {
                    "type": "string"
                },
                "claimedAt": {
                    "type": "string"
                },
                "error": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "idempoKey": {
                    "type": "string"
                },
                "leaseAt": {
                    "type": "string"
                },
                "processedAt": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "token": {
                    "type": "string"
                },
                "txRef": {
                    "type": "string"
                },
                "wallet": {
                    "type": "string"
                }
            }
        },
        "claim-settlement.GetClaimResponse": {
            "type": "object",
            "properties": {
                "claim": {
                    "$ref": "#/definitions/claim-settlement.ClaimDTO"
                },
                "ok": {
                    "type": "boolean"
                }
            }
        },
        "claim-settlement.CapUsageDTO": {
            "type": "object",
            "properties": {
                "cap": {
                    "type": "string"
                },
                "remaining": {
                    "type": "string"
                },
                "used": {
                    "type": "string"
                }
            }
        },
        "claim-settlement.ClaimsHealthResponse": {
            "type": "object",
            "properties": {
                "completed": {
                    "type": "integer"
                },
                "dailyCapUsage": {
                    "type": "object",
                    "additionalProperties": {
                        "$ref": "#/definitions/claim-settlement.CapUsageDTO"
                    }
                },
                "failed": {
                    "type": "integer"
                },
                "pending": {
                    "type": "integer"
                },
                "processing": {
                    "type": "integer"
                },
                "processingLagSeconds": {
                    "type": "integer"
                }
            }
        },
        "claim-settlement.ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                },
                "ok": {
                    "type": "boolean"
                },
                "reason": {
                    "type": "string"
                },
                "retryAfterSeconds": {
                    "type": "integer"
                }
            }
        },
        "tx-guard.AcquireGuardRequest": {
            "type": "object",
            "properties": {
                "amount": {
                    "type": "string"
                },
                "countryId": {
                    "type": "integer"
                },
                "mode": {
                    "type": "string"
                },
                "wallet": {
                    "type": "string"
                }
            }
        },
        "tx-guard.AdmitOnboardingRequest": {
            "type": "object",
            "properties": {
                "wallet": {
                    "type": "string"
                }
            }
        },
        "tx-guard.MarkSentRequest": {
            "type": "object",
            "properties": {
                "lockKey": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "tx-guard.ReleaseGuardRequest": {
            "type": "object",
            "properties": {
                "lockKey": {
                    "type": "string"
                }
            }
        },
        "tx-guard.GuardResponse": {
            "type": "object",
            "properties": {
                "expiresAt": {
                    "type": "string"
                },
                "lockKey": {
                    "type": "string"
                },
                "ok": {
                    "type": "boolean"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "tx-guard.ReleaseGuardResponse": {
            "type": "object",
            "properties": {
                "ok": {
                    "type": "boolean"
                },
                "released": {
                    "type": "boolean"
                }
            }
        },
        "tx-guard.ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                },
                "ok": {
                    "type": "boolean"
                },
                "reason": {
                    "type": "string"
                },
                "retryAfterSeconds": {
                    "type": "integer"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "claimguard API",
	Description:      "Idempotent claim settlement and transaction guard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
