package mcp

// getAllTools 返回全部可用工具的定义。
func getAllTools() []Tool {
	platformEnum := []string{"amazon", "bestbuy", "ebay", "etsy", "homedepot", "walmart", "zara"}

	return []Tool{
		{
			Name:        "search_products",
			Description: "Search for products by keyword across one or more e-commerce platforms. Failures on individual platforms are reported per-platform and do not fail the call.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search keywords",
					},
					"platforms": map[string]any{
						"type":        "array",
						"description": "Platforms to search. Defaults to all supported platforms.",
						"items": map[string]any{
							"type": "string",
							"enum": platformEnum,
						},
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum results per platform (default 10)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_product_details",
			Description: "Fetch normalized product details for a product page URL. Uses a structured dataset when the platform supports one, otherwise falls back to scraping the rendered page.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "Product page URL",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        "compare_prices",
			Description: "Compare prices for the same product across platforms, either by a keyword query or by a list of product URLs.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Keyword query to search and compare across platforms",
					},
					"platforms": map[string]any{
						"type":        "array",
						"description": "Platforms to include when using a query",
						"items": map[string]any{
							"type": "string",
							"enum": platformEnum,
						},
					},
					"urls": map[string]any{
						"type":        "array",
						"description": "Product URLs to fetch and compare directly",
						"items":       map[string]any{"type": "string"},
					},
				},
			},
		},
		{
			Name:        "track_product",
			Description: "Add a product to the user's tracked list. Tracking the same URL twice updates the existing entry.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_email": map[string]any{
						"type":        "string",
						"description": "Email identifying the tracking user",
					},
					"url": map[string]any{
						"type":        "string",
						"description": "Product page URL to track",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "Product name (fetched automatically if omitted)",
					},
					"price": map[string]any{
						"type":        "number",
						"description": "Current price (fetched automatically if omitted)",
					},
					"currency": map[string]any{
						"type":        "string",
						"description": "Currency code, default USD",
					},
				},
				"required": []string{"user_email", "url"},
			},
		},
		{
			Name:        "untrack_product",
			Description: "Remove a product from the user's tracked list and delete its price history.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_email": map[string]any{
						"type":        "string",
						"description": "Email identifying the tracking user",
					},
					"product_id": map[string]any{
						"type":        "integer",
						"description": "ID of the tracked product",
					},
				},
				"required": []string{"user_email", "product_id"},
			},
		},
		{
			Name:        "get_user_tracked_products",
			Description: "List the user's tracked products, optionally including full price history in insertion order.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_email": map[string]any{
						"type":        "string",
						"description": "Email identifying the tracking user",
					},
					"include_price_history": map[string]any{
						"type":        "boolean",
						"description": "Include each product's full price history",
					},
				},
				"required": []string{"user_email"},
			},
		},
		{
			Name:        "update_product_prices",
			Description: "Refresh current prices for a list of tracked products. Each entry succeeds or fails independently.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"urls": map[string]any{
						"type":        "array",
						"description": "Tracked product URLs to refresh",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"urls"},
			},
		},
	}
}
