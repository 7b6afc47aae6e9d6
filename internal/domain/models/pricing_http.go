package models

// Requests and responses of the pricing HTTP endpoints. JSON names are the
// contract with the simulator front-end and must not change.

type ComputeRequest struct {
	Amount        float64 `json:"montant_disponible" validate:"required,gt=0"`
	Currency      string  `json:"devise" validate:"required,len=3,alpha"`
	Years         int     `json:"duree" validate:"required,gte=1"`
	Retrocessions string  `json:"retrocessions" validate:"required"`
	ContractFee   float64 `json:"frais_contrat" validate:"gte=0,lte=0.05"`
}

type ComputeResponse struct {
	AnnualAnnuity    float64 `json:"rente_annuelle_arrondie"`
	ManagementRate   float64 `json:"gestion_rate"`
	RetrocessionRate float64 `json:"retro_rate"`
	CustodyRate      float64 `json:"garde_rate"`
	ContractFee      float64 `json:"frais_contrat"`
	TotalFeeRate     float64 `json:"total_frais"`
}

type CurveRequest struct {
	Currency string `query:"devise" json:"devise" default:"EUR" validate:"required,len=3,alpha"`
}

type CurvePoint struct {
	Years   int     `json:"duree"`
	RatePct float64 `json:"taux"`
}

type CurveResponse struct {
	Currency string       `json:"devise"`
	Points   []CurvePoint `json:"points"`
}
