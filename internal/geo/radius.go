package geo

// Notification fan-out radius policy. Critical requests cast a tighter donor
// net (a donor 50 km away cannot help in time); banks are searched wide
// regardless of priority because stock can be driven.
const (
	DonorRadiusCriticalKm = 20
	DonorRadiusDefaultKm  = 50
	BankRadiusKm          = 100

	// Result caps bound downstream notification fan-out.
	MaxDonorResults = 100
	MaxBankResults  = 20
)

// DonorRadiusKm returns the donor search radius for a request priority.
func DonorRadiusKm(critical bool) float64 {
	if critical {
		return DonorRadiusCriticalKm
	}
	return DonorRadiusDefaultKm
}
