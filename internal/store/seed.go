package store

import "time"

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

// SeedLeads returns a fresh copy of the fixed lead set served by the mock
// backend.
func SeedLeads() []Lead {
	return []Lead{
		{
			ID:           "1",
			Name:         "John Smith",
			Email:        "john.smith@techcorp.com",
			Company:      "TechCorp Inc.",
			CampaignID:   "1",
			CampaignName: "Q1 Enterprise Outreach",
			Status:       LeadContacted,
			LastContact:  day("2024-01-15"),
			Phone:        StringPtr("+1 (555) 123-4567"),
			Position:     StringPtr("CTO"),
			Notes:        StringPtr("Interested in enterprise solutions. Follow up next week."),
			CreatedAt:    day("2024-01-10"),
		},
		{
			ID:           "2",
			Name:         "Sarah Johnson",
			Email:        "sarah.j@innovateads.com",
			Company:      "InnovateAds",
			CampaignID:   "2",
			CampaignName: "Marketing Automation Campaign",
			Status:       LeadResponded,
			LastContact:  day("2024-01-14"),
			Phone:        StringPtr("+1 (555) 987-6543"),
			Position:     StringPtr("Marketing Director"),
			Notes:        StringPtr("Scheduled demo for next Tuesday."),
			CreatedAt:    day("2024-01-08"),
		},
		{
			ID:           "3",
			Name:         "Michael Chen",
			Email:        "m.chen@dataflow.io",
			Company:      "DataFlow Solutions",
			CampaignID:   "1",
			CampaignName: "Q1 Enterprise Outreach",
			Status:       LeadConverted,
			LastContact:  day("2024-01-12"),
			Phone:        StringPtr("+1 (555) 456-7890"),
			Position:     StringPtr("VP of Engineering"),
			Notes:        StringPtr("Signed annual contract. Great success!"),
			CreatedAt:    day("2024-01-05"),
		},
		{
			ID:           "4",
			Name:         "Emily Rodriguez",
			Email:        "emily.r@growthco.com",
			Company:      "GrowthCo",
			CampaignID:   "3",
			CampaignName: "SaaS Startup Outreach",
			Status:       LeadPending,
			LastContact:  day("2024-01-16"),
			Position:     StringPtr("Founder & CEO"),
			CreatedAt:    day("2024-01-16"),
		},
		{
			ID:           "5",
			Name:         "David Wilson",
			Email:        "david.wilson@fintech.co",
			Company:      "FinTech Solutions",
			CampaignID:   "2",
			CampaignName: "Marketing Automation Campaign",
			Status:       LeadContacted,
			LastContact:  day("2024-01-13"),
			Phone:        StringPtr("+1 (555) 321-0987"),
			Position:     StringPtr("Head of Operations"),
			Notes:        StringPtr("Requested pricing information."),
			CreatedAt:    day("2024-01-07"),
		},
	}
}

// SeedCampaigns returns a fresh copy of the fixed campaign set served by the
// mock backend.
func SeedCampaigns() []Campaign {
	return []Campaign{
		{
			ID:              "1",
			Name:            "Q1 Enterprise Outreach",
			Status:          CampaignActive,
			TotalLeads:      45,
			SuccessfulLeads: 12,
			ResponseRate:    26.7,
			CreatedAt:       day("2024-01-01"),
			UpdatedAt:       day("2024-01-15"),
		},
		{
			ID:              "2",
			Name:            "Marketing Automation Campaign",
			Status:          CampaignActive,
			TotalLeads:      38,
			SuccessfulLeads: 8,
			ResponseRate:    21.1,
			CreatedAt:       day("2024-01-05"),
			UpdatedAt:       day("2024-01-14"),
		},
		{
			ID:              "3",
			Name:            "SaaS Startup Outreach",
			Status:          CampaignPaused,
			TotalLeads:      22,
			SuccessfulLeads: 3,
			ResponseRate:    13.6,
			CreatedAt:       day("2024-01-10"),
			UpdatedAt:       day("2024-01-12"),
		},
		{
			ID:              "4",
			Name:            "Holiday Special Campaign",
			Status:          CampaignCompleted,
			TotalLeads:      67,
			SuccessfulLeads: 19,
			ResponseRate:    28.4,
			CreatedAt:       day("2023-12-01"),
			UpdatedAt:       day("2023-12-31"),
		},
	}
}
