package models

// ModelsToAutoMigrate returns all models in migration order.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Post{},
		&PostVersion{},
		&Mention{}, // references posts and, via the join table, post versions
		&Permission{},
	}
}
