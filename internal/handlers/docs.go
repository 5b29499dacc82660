package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description, typ string, required bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      map[string]string{"type": typ},
	}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func errorResponse(description string) map[string]interface{} {
	return jsonResponse(description, map[string]string{"$ref": "#/components/schemas/Error"})
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func object(props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": props}
}

var (
	numberSchema   = map[string]string{"type": "number"}
	stringSchema   = map[string]string{"type": "string"}
	boolSchema     = map[string]string{"type": "boolean"}
	dateTimeSchema = map[string]string{"type": "string", "format": "date-time"}
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the FarmFresh API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	predictParams := []map[string]interface{}{
		queryParam("crop", "Crop name", "string", true),
		queryParam("city", "Market city (default Coimbatore)", "string", false),
		queryParam("buyer_qty", "Buyer quantity (default 1)", "number", false),
		queryParam("seller_qty", "Seller quantity (default 5)", "number", false),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "FarmFresh API",
			"description": "Weather-adjusted crop price estimation, produce image classification and marketplace accounts",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "FarmFresh Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:5000", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/price_service": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Price service info",
					"responses": map[string]interface{}{"200": jsonResponse("Service is running", object(map[string]interface{}{"service": stringSchema, "status": stringSchema, "port": map[string]string{"type": "integer"}}))},
				},
			},
			"/cities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "List supported market cities",
					"responses": map[string]interface{}{"200": jsonResponse("City names", map[string]interface{}{"type": "array", "items": stringSchema})},
				},
			},
			"/weather/{city}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Current weather for a city",
					"parameters": []map[string]interface{}{
						{"name": "city", "in": "path", "required": true, "schema": stringSchema},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Weather snapshot", ref("Weather")),
						"404": errorResponse("Unknown city or weather unavailable"),
					},
				},
			},
			"/predict_price": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Predict a crop price",
					"parameters": predictParams,
					"responses": map[string]interface{}{
						"200": jsonResponse("Price quote", ref("PriceQuote")),
						"400": errorResponse("Missing crop or invalid quantity"),
						"404": errorResponse("Unknown city"),
					},
				},
				"post": map[string]interface{}{
					"summary": "Predict a crop price from a JSON body",
					"requestBody": map[string]interface{}{
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": object(map[string]interface{}{"crop": stringSchema, "city": stringSchema, "buyer_qty": numberSchema, "seller_qty": numberSchema}),
							},
						},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Price quote", ref("PriceQuote")),
						"400": errorResponse("Missing crop or invalid body"),
						"404": errorResponse("Unknown city"),
					},
				},
			},
			"/weather_snapshot": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "Weather for every city plus dataset metadata",
					"responses": map[string]interface{}{"200": jsonResponse("Weather overview", map[string]string{"type": "object"})},
				},
			},
			"/dataset_status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Dataset refresh status",
					"responses": map[string]interface{}{"200": jsonResponse("Refresh status", object(map[string]interface{}{
						"available_locations": map[string]interface{}{"type": "array", "items": stringSchema},
						"last_refreshed":      map[string]interface{}{"type": "string", "format": "date-time", "nullable": true},
						"generated_csv":       stringSchema,
						"model_ready":         boolSchema,
					}))},
				},
			},
			"/dataset/export.xlsx": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Download the current dataset as a spreadsheet",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Workbook with Dataset and Crop Summary sheets",
							"content": map[string]interface{}{
								"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": map[string]interface{}{
									"schema": map[string]string{"type": "string", "format": "binary"},
								},
							},
						},
						"404": errorResponse("No dataset generated yet"),
					},
				},
			},
			"/predict": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Classify an uploaded produce image",
					"requestBody": map[string]interface{}{
						"content": map[string]interface{}{
							"multipart/form-data": map[string]interface{}{
								"schema": object(map[string]interface{}{"image": map[string]string{"type": "string", "format": "binary"}}),
							},
						},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Classification", ref("Classification")),
						"400": errorResponse("No image uploaded"),
						"503": errorResponse("Classifier not configured"),
					},
				},
			},
			"/predict_uploaded": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Classify a previously uploaded image",
					"parameters": []map[string]interface{}{queryParam("file", "Uploaded file name", "string", true)},
					"responses": map[string]interface{}{
						"200": jsonResponse("Classification", ref("Classification")),
						"400": errorResponse("Missing file parameter"),
						"404": errorResponse("File not found"),
					},
				},
			},
			"/register": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Register a customer or farmer",
					"requestBody": map[string]interface{}{
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{"schema": ref("Registration")},
						},
					},
					"responses": map[string]interface{}{
						"201": jsonResponse("User registered", object(map[string]interface{}{"message": stringSchema})),
						"400": errorResponse("Missing fields or user already exists"),
					},
				},
			},
			"/api/login": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Log in with email and password",
					"requestBody": map[string]interface{}{
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": object(map[string]interface{}{"email": stringSchema, "password": stringSchema}),
							},
						},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Login successful", object(map[string]interface{}{"message": stringSchema, "user": map[string]string{"type": "object"}})),
						"401": errorResponse("Invalid email or password"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Ping configured backing stores",
					"responses": map[string]interface{}{
						"200": jsonResponse("All components healthy", map[string]string{"type": "object"}),
						"503": jsonResponse("A component is degraded", map[string]string{"type": "object"}),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": stringSchema,
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": object(map[string]interface{}{"error": stringSchema, "message": stringSchema, "code": map[string]string{"type": "integer"}}),
				"Weather": object(map[string]interface{}{
					"temperature_c":         numberSchema,
					"rain_chance_pct":       numberSchema,
					"humidity_pct":          numberSchema,
					"wind_speed_kph":        numberSchema,
					"weather_quality_index": numberSchema,
					"timestamp":             dateTimeSchema,
				}),
				"PriceQuote": object(map[string]interface{}{
					"crop":                  stringSchema,
					"city":                  stringSchema,
					"base_price":            numberSchema,
					"predicted_price":       numberSchema,
					"multiplier":            numberSchema,
					"weather_quality_index": numberSchema,
					"weather":               map[string]interface{}{"allOf": []interface{}{ref("Weather")}, "nullable": true},
					"buyer_qty":             numberSchema,
					"seller_qty":            numberSchema,
					"model_used":            boolSchema,
					"timestamp":             dateTimeSchema,
				}),
				"Classification": object(map[string]interface{}{"prediction": stringSchema, "confidence": numberSchema}),
				"Registration": object(map[string]interface{}{
					"firstName": stringSchema,
					"lastName":  stringSchema,
					"email":     stringSchema,
					"password":  stringSchema,
					"userType":  stringSchema,
					"phone":     stringSchema,
					"address":   stringSchema,
					"farmName":  stringSchema,
					"farmSize":  stringSchema,
					"soilType":  stringSchema,
				}),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
