package models

// LocalTables lists every struct mirrored into the on-device sqlite
// store, in a child-safe migration order.
func LocalTables() []any {
	return []any{
		&Municipio{},
		&PrestadorServico{},
		&TipoUnidade{},
		&ItemChecklist{},
		&Fiscalizacao{},
		&UnidadeFiscalizada{},
		&RespostaChecklist{},
		&ConstatacaoManual{},
		&NaoConformidade{},
		&Determinacao{},
		&Recomendacao{},
		&SyncOperation{},
		&IDMapping{},
	}
}
