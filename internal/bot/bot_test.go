package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func testGuild(everyonePerms int64, roles ...*discordgo.Role) *discordgo.Guild {
	guild := &discordgo.Guild{ID: "g1", OwnerID: "owner"}
	guild.Roles = append(guild.Roles, &discordgo.Role{ID: "g1", Permissions: everyonePerms})
	guild.Roles = append(guild.Roles, roles...)
	return guild
}

func TestGuildPermissionsMergesEveryone(t *testing.T) {
	guild := testGuild(discordgo.PermissionSendMessages,
		&discordgo.Role{ID: "mod", Permissions: discordgo.PermissionManageMessages})
	member := &discordgo.Member{Roles: []string{"mod"}}

	perms := guildPermissions(guild, member)
	if perms&discordgo.PermissionSendMessages == 0 {
		t.Fatal("@everyone permissions not merged")
	}
	if perms&discordgo.PermissionManageMessages == 0 {
		t.Fatal("member role permissions not merged")
	}
}

func TestGuildPermissionsIgnoresUnknownRoles(t *testing.T) {
	guild := testGuild(0)
	member := &discordgo.Member{Roles: []string{"deleted-role"}}

	if perms := guildPermissions(guild, member); perms != 0 {
		t.Fatalf("expected no permissions, got %d", perms)
	}
}

func TestModeratorPermissionsAreExempt(t *testing.T) {
	cases := []struct {
		name string
		perm int64
	}{
		{"administrator", discordgo.PermissionAdministrator},
		{"manage_messages", discordgo.PermissionManageMessages},
		{"moderate_members", discordgo.PermissionModerateMembers},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guild := testGuild(0, &discordgo.Role{ID: "staff", Permissions: tc.perm})
			member := &discordgo.Member{Roles: []string{"staff"}}

			if guildPermissions(guild, member)&exemptPermissions == 0 {
				t.Fatalf("permission %d should make the actor exempt", tc.perm)
			}
		})
	}
}

func TestPlainMemberIsNotExempt(t *testing.T) {
	guild := testGuild(discordgo.PermissionSendMessages|discordgo.PermissionViewChannel,
		&discordgo.Role{ID: "regular", Permissions: discordgo.PermissionEmbedLinks})
	member := &discordgo.Member{Roles: []string{"regular"}}

	if guildPermissions(guild, member)&exemptPermissions != 0 {
		t.Fatal("plain member permissions should not be exempt")
	}
}
