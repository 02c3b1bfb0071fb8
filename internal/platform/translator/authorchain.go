package translator

import (
	"github.com/epsgw/epsgw/internal/platform/fhir"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
)

// resolveAgent walks the clinical author chain behind a PractitionerRole
// reference: role -> practitioner, role -> organization, and optionally
// role -> healthcare service. Every step resolves through the navigator and
// fails loudly on ambiguity instead of propagating nils.
//
// Two organization shapes exist on the wire:
//   - primary care: the practice organization has a parent commissioning
//     organization (organization.partOf), emitted as a health-care-provider
//     license around the parent;
//   - secondary care: the role carries a healthcare service, whose name and
//     location stand in for the represented organization, with no parent.
func resolveAgent(b *fhir.Bundle, roleRef *fhir.Reference, path string) (hl7v3.AgentPerson, error) {
	var agent hl7v3.AgentPerson

	var role fhir.PractitionerRole
	if err := fhir.ResolveReferenceInto(b, roleRef, path, &role); err != nil {
		return agent, err
	}

	roleProfileID, err := fhir.IdentifierValue(role.Identifier, SystemSDSRoleProfileID, path+".identifier")
	if err != nil {
		return agent, err
	}
	agent.RoleProfileID = roleProfileID

	for _, cc := range role.Code {
		for _, coding := range cc.Coding {
			if coding.System == SystemJobRoleCode {
				agent.JobRoleCode = coding.Code
			}
		}
	}
	for _, tel := range role.Telecom {
		if tel.System == "phone" {
			agent.Telecom = "tel:" + tel.Value
			break
		}
	}

	var practitioner fhir.Practitioner
	if err := fhir.ResolveReferenceInto(b, role.Practitioner, path+".practitioner", &practitioner); err != nil {
		return agent, err
	}
	userID, err := fhir.IdentifierValue(practitioner.Identifier, SystemSDSUserID, path+".practitioner.identifier")
	if err != nil {
		return agent, err
	}
	agent.UserID = userID
	agent.Name = personName(practitioner.Name)

	if len(role.HealthcareService) > 0 {
		org, err := resolveSecondaryCareOrganization(b, &role, path)
		if err != nil {
			return agent, err
		}
		agent.Organization = org
		return agent, nil
	}

	org, err := resolvePrimaryCareOrganization(b, role.Organization, path+".organization")
	if err != nil {
		return agent, err
	}
	agent.Organization = org
	return agent, nil
}

func resolvePrimaryCareOrganization(b *fhir.Bundle, orgRef *fhir.Reference, path string) (hl7v3.Organization, error) {
	var out hl7v3.Organization

	var org fhir.OrganizationResource
	if err := fhir.ResolveReferenceInto(b, orgRef, path, &org); err != nil {
		return out, err
	}
	out = organizationFromResource(&org)
	out.TypeCode = "999" // general practice per the organization-type vocabulary

	if org.PartOf != nil {
		parentODS, err := fhir.IdentifierReferenceValue(org.PartOf, SystemODSCode, path+".partOf")
		if err != nil {
			// The parent may also appear as a bundle entry.
			var parent fhir.OrganizationResource
			if rerr := fhir.ResolveReferenceInto(b, org.PartOf, path+".partOf", &parent); rerr != nil {
				return out, err
			}
			p := organizationFromResource(&parent)
			out.Parent = &p
			return out, nil
		}
		out.Parent = &hl7v3.Organization{ODSCode: parentODS, Name: org.PartOf.Display}
	}
	return out, nil
}

func resolveSecondaryCareOrganization(b *fhir.Bundle, role *fhir.PractitionerRole, path string) (hl7v3.Organization, error) {
	var out hl7v3.Organization

	var hcs fhir.HealthcareService
	if err := fhir.ResolveReferenceInto(b, &role.HealthcareService[0], path+".healthcareService", &hcs); err != nil {
		return out, err
	}
	odsCode, err := fhir.IdentifierValue(hcs.Identifier, SystemODSCode, path+".healthcareService.identifier")
	if err != nil {
		return out, err
	}
	out.ODSCode = odsCode
	out.Name = hcs.Name
	out.TypeCode = "999"
	for _, tel := range hcs.Telecom {
		if tel.System == "phone" {
			out.Telecom = "tel:" + tel.Value
			break
		}
	}
	if len(hcs.Location) > 0 {
		var loc fhir.Location
		if err := fhir.ResolveReferenceInto(b, &hcs.Location[0], path+".healthcareService.location", &loc); err == nil && loc.Address != nil {
			lines := loc.Address.Line
			if loc.Address.City != "" {
				lines = append(lines, loc.Address.City)
			}
			out.Address = &hl7v3.Address{
				Use:      "WP",
				Lines:    lines,
				Postcode: loc.Address.PostalCode,
			}
		}
	}
	return out, nil
}

func organizationFromResource(org *fhir.OrganizationResource) hl7v3.Organization {
	out := hl7v3.Organization{Name: org.Name}
	for _, id := range org.Identifier {
		if id.System == SystemODSCode {
			out.ODSCode = id.Value
		}
	}
	for _, tel := range org.Telecom {
		if tel.System == "phone" {
			out.Telecom = "tel:" + tel.Value
			break
		}
	}
	if len(org.Address) > 0 {
		a := org.Address[0]
		lines := append([]string(nil), a.Line...)
		if a.City != "" {
			lines = append(lines, a.City)
		}
		out.Address = &hl7v3.Address{Use: "WP", Lines: lines, Postcode: a.PostalCode}
	}
	return out
}

func personName(names []fhir.HumanName) hl7v3.PersonName {
	if len(names) == 0 {
		return hl7v3.PersonName{}
	}
	n := names[0]
	out := hl7v3.PersonName{
		Given:  append([]string(nil), n.Given...),
		Family: n.Family,
	}
	if len(n.Prefix) > 0 {
		out.Prefix = n.Prefix[0]
	}
	return out
}
